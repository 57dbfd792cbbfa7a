package forecast

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu           sync.Mutex
	predictions  int
	failures     int
	latencySum   float64
	synthesized  int
	violations   int
	latencyCount int
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) PredictionLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) IntervalsSynthesizedInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthesized++
}

func (m *MockMetrics) IntervalViolationsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

// Counts returns predictions, failures, synthesized intervals and interval violations.
func (m *MockMetrics) Counts() (predictions, failures, synthesized, violations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures, m.synthesized, m.violations
}
