// Package forecast defines the prediction contract served to the network,
// the interval policies used to bracket scalar forecasts, and the adapter
// that turns a bare prediction function into a contract-conforming Predictor.
//
// A Predictor never mutates shared state on Predict, so the serving loop may
// call it concurrently and out of order. The adapter in this package holds
// no per-call state; whatever it wraps must be read-only after load.
package forecast

import (
	"context"
	"time"
)

// Predictor is the single capability every forecasting implementation exposes.
type Predictor interface {
	// Predict returns a point forecast and the interval bracketing it for the
	// given timestamp. Failures are reported as *PredictionError.
	Predict(ctx context.Context, timestamp string) (Prediction, error)
}

// Interval is a (low, high) pair expressing forecast uncertainty.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Width returns High - Low.
func (i Interval) Width() float64 { return i.High - i.Low }

// Brackets reports whether low <= point <= high.
func (i Interval) Brackets(point float64) bool {
	return i.Low <= point && point <= i.High
}

// Prediction is the result of one Predict call.
type Prediction struct {
	Timestamp time.Time `json:"timestamp"`
	Point     float64   `json:"prediction"`
	Interval  Interval  `json:"interval"`
	// Policy names the interval policy that produced Interval, or is empty
	// when the implementation supplied its own interval.
	Policy string `json:"policy,omitempty"`
}

// MetricsInterface defines metrics methods needed by the adapter.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(float64)
	IntervalsSynthesizedInc()
	IntervalViolationsInc()
}
