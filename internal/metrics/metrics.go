// Package metrics provides Prometheus metrics collection for the forecast miner.
// It defines the prediction, discovery and serving metrics exposed via the
// Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the miner.
type Metrics struct {
	// Prediction metrics
	Predictions          prometheus.Counter   // Total number of successful predictions
	PredictionFailures   prometheus.Counter   // Total number of failed predictions
	PredictionLatency    prometheus.Histogram // End-to-end Predict latency in seconds
	IntervalsSynthesized prometheus.Counter   // Intervals derived by the interval policy
	IntervalViolations   prometheus.Counter   // Implementation intervals not bracketing their forecast

	// Discovery metrics
	Discoveries       *prometheus.CounterVec // Discovery runs by outcome
	DiscoveryDuration prometheus.Histogram   // Duration of discovery runs
	ModelAge          prometheus.Gauge       // Age of the selected model weights in seconds

	// Serving metrics
	Requests  *prometheus.CounterVec // HTTP requests by route and status code
	WSClients prometheus.Gauge       // Connected WebSocket clients

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "miner_predictions_total",
			Help: "Total number of successful predictions",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "miner_prediction_failures_total",
			Help: "Total number of failed predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "miner_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		IntervalsSynthesized: factory.NewCounter(prometheus.CounterOpts{
			Name: "miner_intervals_synthesized_total",
			Help: "Total number of intervals derived from a scalar forecast",
		}),
		IntervalViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "miner_interval_violations_total",
			Help: "Total number of implementation intervals that do not bracket the forecast",
		}),
		Discoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miner_discoveries_total",
			Help: "Total number of discovery runs by outcome",
		}, []string{"outcome"}),
		DiscoveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "miner_discovery_duration_seconds",
			Help:    "Duration of discovery runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "miner_model_age_seconds",
			Help: "Age of the selected model weights in seconds",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miner_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "miner_ws_clients",
			Help: "Number of connected WebSocket clients",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "miner_errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
