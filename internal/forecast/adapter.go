package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"forecast-miner/internal/common"

	"github.com/rs/zerolog/log"
)

// Func is a bare prediction callable. A nil interval asks the adapter to
// synthesize one with its policy.
type Func func(timestamp string) (point float64, interval *Interval, err error)

// FuncModel adapts a Func to the Predictor contract.
type FuncModel struct {
	fn      Func
	policy  IntervalPolicy
	strict  bool
	metrics MetricsInterface
	source  string
}

// Option configures a FuncModel.
type Option func(*FuncModel)

// WithStrictIntervals rejects implementation-supplied intervals that do not
// bracket the forecast instead of passing them through.
func WithStrictIntervals() Option {
	return func(m *FuncModel) { m.strict = true }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(metrics MetricsInterface) Option {
	return func(m *FuncModel) { m.metrics = metrics }
}

// WithSource labels log lines with the implementation the function came from.
func WithSource(source string) Option {
	return func(m *FuncModel) { m.source = source }
}

// NewFuncModel wraps fn. policy may be nil when fn always returns its own
// interval; a scalar-only result then fails the call.
func NewFuncModel(fn Func, policy IntervalPolicy, opts ...Option) *FuncModel {
	m := &FuncModel{fn: fn, policy: policy}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the policy used for scalar results, or nil.
func (m *FuncModel) Policy() IntervalPolicy { return m.policy }

// Predict invokes the wrapped function exactly once.
func (m *FuncModel) Predict(ctx context.Context, timestamp string) (Prediction, error) {
	start := time.Now()
	p, err := m.predict(ctx, timestamp)
	if m.metrics != nil {
		m.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			m.metrics.PredictionFailuresInc()
		} else {
			m.metrics.PredictionsInc()
		}
	}
	if err != nil {
		log.Debug().Err(err).Str("timestamp", timestamp).Str("source", m.source).Msg("prediction failed")
	}
	return p, err
}

func (m *FuncModel) predict(ctx context.Context, timestamp string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, newPredictionError(timestamp, err)
	}

	ts, err := common.ParseTimestamp(timestamp)
	if err != nil {
		return Prediction{}, newPredictionError(timestamp, err)
	}

	point, interval, err := m.call(timestamp)
	if err != nil {
		return Prediction{}, newPredictionError(timestamp, err)
	}
	if math.IsNaN(point) || math.IsInf(point, 0) {
		return Prediction{}, newPredictionError(timestamp, fmt.Errorf("%w: %v", ErrInvalidForecast, point))
	}

	if interval == nil {
		if m.policy == nil {
			return Prediction{}, newPredictionError(timestamp,
				fmt.Errorf("%w: implementation returned no interval and no policy is configured", ErrInvalidForecast))
		}
		if m.metrics != nil {
			m.metrics.IntervalsSynthesizedInc()
		}
		return Prediction{
			Timestamp: ts,
			Point:     point,
			Interval:  m.policy.Interval(point),
			Policy:    m.policy.Name(),
		}, nil
	}

	if !interval.Brackets(point) {
		if m.metrics != nil {
			m.metrics.IntervalViolationsInc()
		}
		if m.strict {
			return Prediction{}, newPredictionError(timestamp,
				fmt.Errorf("%w: %v not in [%v, %v]", ErrIntervalViolation, point, interval.Low, interval.High))
		}
		log.Warn().
			Str("timestamp", timestamp).
			Str("source", m.source).
			Float64("prediction", point).
			Float64("low", interval.Low).
			Float64("high", interval.High).
			Msg("implementation interval does not bracket its forecast, passing through")
	}

	return Prediction{Timestamp: ts, Point: point, Interval: *interval}, nil
}

func (m *FuncModel) call(timestamp string) (point float64, interval *Interval, err error) {
	defer func() {
		if r := recover(); r != nil {
			point, interval = 0, nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return m.fn(timestamp)
}
