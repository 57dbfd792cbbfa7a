package plugin

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"forecast-miner/internal/common"
	"forecast-miner/internal/forecast"
)

var ErrNonConforming = errors.New("entry point does not match a supported signature")

// Output enumerates the accepted result shapes of an entry point.
type Output int

const (
	OutputNone Output = iota
	OutputScalar
	OutputScalarErr
	OutputInterval
	OutputIntervalErr
)

func (o Output) String() string {
	switch o {
	case OutputScalar:
		return "float64"
	case OutputScalarErr:
		return "(float64, error)"
	case OutputInterval:
		return "(float64, [2]float64)"
	case OutputIntervalErr:
		return "(float64, [2]float64, error)"
	default:
		return "none"
	}
}

// HasInterval reports whether the entry point supplies its own interval.
func (o Output) HasInterval() bool {
	return o == OutputInterval || o == OutputIntervalErr
}

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	timeType  = reflect.TypeOf(time.Time{})
)

// Conformance is the outcome of checking an entry point against the accepted
// signatures. Input is "string" or "time.Time"; Reason is empty when the
// entry point conforms.
type Conformance struct {
	Entry  string `json:"entry"`
	Input  string `json:"input,omitempty"`
	Output Output `json:"-"`
	Reason string `json:"reason,omitempty"`

	fn reflect.Value
}

// Conforms reports whether the entry point can be bound.
func (c Conformance) Conforms() bool { return c.Reason == "" && c.fn.IsValid() }

// Signature renders the checked signature for logs.
func (c Conformance) Signature() string {
	if !c.Conforms() {
		return ""
	}
	return fmt.Sprintf("func(%s) %s", c.Input, c.Output)
}

// Check inspects v. Accepted: one argument of type string or time.Time, and
// results (float64), (float64, error), (float64, [2]float64) or
// (float64, [2]float64, error). A []float64 is accepted in place of
// [2]float64 and its length is checked per call.
func Check(entry string, v reflect.Value) Conformance {
	c := Conformance{Entry: entry}
	if !v.IsValid() {
		c.Reason = "symbol has no value"
		return c
	}
	if v.Kind() != reflect.Func {
		c.Reason = fmt.Sprintf("%s is a %s, not a function", entry, v.Kind())
		return c
	}
	if v.IsNil() {
		c.Reason = fmt.Sprintf("%s is a nil function", entry)
		return c
	}

	t := v.Type()
	if t.IsVariadic() || t.NumIn() != 1 {
		c.Reason = fmt.Sprintf("%s must take exactly one argument, has signature %s", entry, t)
		return c
	}
	switch in := t.In(0); {
	case in.Kind() == reflect.String:
		c.Input = "string"
	case in == timeType:
		c.Input = "time.Time"
	default:
		c.Reason = fmt.Sprintf("%s argument must be string or time.Time, got %s", entry, in)
		return c
	}

	if t.NumOut() == 0 || t.Out(0).Kind() != reflect.Float64 {
		c.Reason = fmt.Sprintf("%s must return float64 first, has signature %s", entry, t)
		return c
	}
	switch t.NumOut() {
	case 1:
		c.Output = OutputScalar
	case 2:
		switch {
		case isError(t.Out(1)):
			c.Output = OutputScalarErr
		case isPair(t.Out(1)):
			c.Output = OutputInterval
		}
	case 3:
		if isPair(t.Out(1)) && isError(t.Out(2)) {
			c.Output = OutputIntervalErr
		}
	}
	if c.Output == OutputNone {
		c.Reason = fmt.Sprintf("%s has unsupported results in signature %s", entry, t)
		return c
	}

	c.fn = v
	return c
}

func isError(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.Implements(errorType)
}

func isPair(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Array:
		return t.Len() == 2 && t.Elem().Kind() == reflect.Float64
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Float64
	}
	return false
}

// Bind returns a forecast.Func calling the checked entry point. A time.Time
// entry point receives the timestamp parsed as UTC.
func (c Conformance) Bind() (forecast.Func, error) {
	if !c.Conforms() {
		return nil, fmt.Errorf("%w: %s", ErrNonConforming, c.Reason)
	}
	fn, byTime, output := c.fn, c.Input == "time.Time", c.Output
	argType := fn.Type().In(0)

	return func(timestamp string) (float64, *forecast.Interval, error) {
		var arg reflect.Value
		if byTime {
			ts, err := common.ParseTimestamp(timestamp)
			if err != nil {
				return 0, nil, err
			}
			arg = reflect.ValueOf(ts)
		} else {
			arg = reflect.ValueOf(timestamp).Convert(argType)
		}

		out := fn.Call([]reflect.Value{arg})

		if output == OutputScalarErr || output == OutputIntervalErr {
			if last := out[len(out)-1]; !last.IsNil() {
				return 0, nil, last.Interface().(error)
			}
		}

		point := out[0].Float()
		if !output.HasInterval() {
			return point, nil, nil
		}

		pair := out[1]
		if pair.Len() != 2 {
			return 0, nil, fmt.Errorf("%w: interval has %d bounds, want 2", forecast.ErrInvalidForecast, pair.Len())
		}
		return point, &forecast.Interval{Low: pair.Index(0).Float(), High: pair.Index(1).Float()}, nil
	}, nil
}
