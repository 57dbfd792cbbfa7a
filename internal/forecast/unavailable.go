package forecast

import (
	"context"
	"fmt"
)

// Unavailable is the degraded predictor used when discovery failed. Every
// call reports ErrUnavailable together with the reason capability is missing.
type Unavailable struct {
	Reason error
}

// NewUnavailable creates a degraded predictor.
func NewUnavailable(reason error) *Unavailable {
	return &Unavailable{Reason: reason}
}

// Predict always fails.
func (u *Unavailable) Predict(_ context.Context, timestamp string) (Prediction, error) {
	if u.Reason == nil {
		return Prediction{}, newPredictionError(timestamp, ErrUnavailable)
	}
	return Prediction{}, newPredictionError(timestamp, fmt.Errorf("%w: %w", ErrUnavailable, u.Reason))
}
