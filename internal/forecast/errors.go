package forecast

import (
	"errors"
	"fmt"

	"forecast-miner/internal/common"
)

var (
	// ErrMalformedTimestamp is re-exported so callers of this package need not import common.
	ErrMalformedTimestamp = common.ErrMalformedTimestamp
	ErrInvalidForecast    = errors.New("invalid forecast value")
	ErrIntervalViolation  = errors.New("interval does not bracket the forecast")
	ErrUnavailable        = errors.New("no prediction capability loaded")
	ErrPanic              = errors.New("implementation panicked")
	ErrPolicyConfig       = errors.New("invalid interval policy configuration")
)

// PredictionError reports a failed Predict call. It is scoped to a single
// call and never disables the predictor for later ones.
type PredictionError struct {
	Timestamp string
	Err       error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predict %q: %v", e.Timestamp, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

func newPredictionError(timestamp string, err error) *PredictionError {
	return &PredictionError{Timestamp: timestamp, Err: err}
}
