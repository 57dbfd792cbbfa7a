package plugin

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"forecast-miner/internal/forecast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_AcceptedSignatures(t *testing.T) {
	testCases := []struct {
		name   string
		fn     interface{}
		input  string
		output Output
	}{
		{"scalar", func(string) float64 { return 1 }, "string", OutputScalar},
		{"scalar with error", func(string) (float64, error) { return 1, nil }, "string", OutputScalarErr},
		{"array interval", func(string) (float64, [2]float64) { return 1, [2]float64{0, 2} }, "string", OutputInterval},
		{"array interval with error", func(time.Time) (float64, [2]float64, error) { return 1, [2]float64{0, 2}, nil }, "time.Time", OutputIntervalErr},
		{"slice interval", func(time.Time) (float64, []float64) { return 1, []float64{0, 2} }, "time.Time", OutputInterval},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Check("Predict", reflect.ValueOf(tc.fn))
			require.True(t, c.Conforms(), c.Reason)
			assert.Equal(t, tc.input, c.Input)
			assert.Equal(t, tc.output, c.Output)
			assert.NotEmpty(t, c.Signature())
		})
	}
}

func TestCheck_RejectedSignatures(t *testing.T) {
	var nilFn func(string) float64
	testCases := []struct {
		name string
		v    reflect.Value
	}{
		{"invalid value", reflect.Value{}},
		{"not a function", reflect.ValueOf(42)},
		{"nil function", reflect.ValueOf(nilFn)},
		{"no arguments", reflect.ValueOf(func() float64 { return 1 })},
		{"two arguments", reflect.ValueOf(func(string, string) float64 { return 1 })},
		{"variadic", reflect.ValueOf(func(...string) float64 { return 1 })},
		{"int argument", reflect.ValueOf(func(int) float64 { return 1 })},
		{"no results", reflect.ValueOf(func(string) {})},
		{"int result", reflect.ValueOf(func(string) int { return 1 })},
		{"three element interval", reflect.ValueOf(func(string) (float64, [3]float64) { return 1, [3]float64{} })},
		{"error first", reflect.ValueOf(func(string) (error, float64) { return nil, 1 })},
		{"interval after error", reflect.ValueOf(func(string) (float64, error, [2]float64) { return 1, nil, [2]float64{} })},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Check("Predict", tc.v)
			assert.False(t, c.Conforms())
			assert.NotEmpty(t, c.Reason)

			_, err := c.Bind()
			assert.ErrorIs(t, err, ErrNonConforming)
		})
	}
}

func TestBind_Scalar(t *testing.T) {
	c := Check("Predict", reflect.ValueOf(func(ts string) float64 { return float64(len(ts)) }))
	fn, err := c.Bind()
	require.NoError(t, err)

	point, interval, err := fn("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 10.0, point)
	assert.Nil(t, interval)
}

func TestBind_TimeInput(t *testing.T) {
	c := Check("Predict", reflect.ValueOf(func(ts time.Time) (float64, error) {
		return float64(ts.Hour()), nil
	}))
	fn, err := c.Bind()
	require.NoError(t, err)

	point, _, err := fn("2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10.0, point)

	_, _, err = fn("yesterday")
	assert.ErrorIs(t, err, forecast.ErrMalformedTimestamp)
}

func TestBind_PropagatesError(t *testing.T) {
	cause := errors.New("out of coverage")
	c := Check("Predict", reflect.ValueOf(func(string) (float64, [2]float64, error) {
		return 0, [2]float64{}, cause
	}))
	fn, err := c.Bind()
	require.NoError(t, err)

	_, _, err = fn("2024-01-15")
	assert.ErrorIs(t, err, cause)
}

func TestBind_Interval(t *testing.T) {
	c := Check("Predict", reflect.ValueOf(func(string) (float64, [2]float64) {
		return 5, [2]float64{4, 6}
	}))
	fn, err := c.Bind()
	require.NoError(t, err)

	point, interval, err := fn("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 5.0, point)
	assert.Equal(t, &forecast.Interval{Low: 4, High: 6}, interval)
}

func TestBind_SliceIntervalLengthChecked(t *testing.T) {
	c := Check("Predict", reflect.ValueOf(func(string) (float64, []float64) {
		return 5, []float64{4}
	}))
	fn, err := c.Bind()
	require.NoError(t, err)

	_, _, err = fn("2024-01-15")
	assert.ErrorIs(t, err, forecast.ErrInvalidForecast)
}
