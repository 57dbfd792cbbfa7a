package forecast

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Interval policy names.
const (
	PolicyFixed = "fixed"
	PolicyStd   = "std"
)

const (
	// DefaultHalfWidth is the pre-calibrated half-width of the fixed policy.
	DefaultHalfWidth = 0.05
	// DefaultZ is the two-sided ~95% normal multiplier of the std policy.
	DefaultZ = 1.96
)

// IntervalPolicy turns a point forecast into an interval.
type IntervalPolicy interface {
	Name() string
	Interval(point float64) Interval
}

// FixedPolicy brackets the forecast with a constant half-width.
type FixedPolicy struct {
	HalfWidth float64
}

func (p FixedPolicy) Name() string { return PolicyFixed }

func (p FixedPolicy) Interval(point float64) Interval {
	return Interval{Low: point - p.HalfWidth, High: point + p.HalfWidth}
}

// StdPolicy brackets the forecast with Z standard errors.
type StdPolicy struct {
	StdErr float64
	Z      float64
}

func (p StdPolicy) Name() string { return PolicyStd }

func (p StdPolicy) Interval(point float64) Interval {
	d := p.Z * p.StdErr
	return Interval{Low: point - d, High: point + d}
}

// PolicyConfig selects and parameterizes one interval policy.
type PolicyConfig struct {
	Method    string  `yaml:"method"`
	HalfWidth float64 `yaml:"halfWidth"`
	StdErr    float64 `yaml:"stdErr"`
	// Z overrides the std multiplier. When zero, Confidence is used if set,
	// otherwise DefaultZ.
	Z          float64 `yaml:"z"`
	Confidence float64 `yaml:"confidence"`
}

// NewPolicy resolves exactly one policy from cfg. A std policy without a
// standard error is a configuration error; it never degrades to fixed.
func NewPolicy(cfg PolicyConfig) (IntervalPolicy, error) {
	method := strings.ToLower(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = PolicyFixed
	}

	switch method {
	case PolicyFixed:
		if cfg.HalfWidth < 0 || math.IsNaN(cfg.HalfWidth) || math.IsInf(cfg.HalfWidth, 0) {
			return nil, fmt.Errorf("%w: half-width must be a non-negative number, got %v", ErrPolicyConfig, cfg.HalfWidth)
		}
		return FixedPolicy{HalfWidth: cfg.HalfWidth}, nil

	case PolicyStd:
		if cfg.StdErr <= 0 || math.IsNaN(cfg.StdErr) || math.IsInf(cfg.StdErr, 0) {
			return nil, fmt.Errorf("%w: std policy requires a positive standard error, got %v", ErrPolicyConfig, cfg.StdErr)
		}
		z, err := resolveZ(cfg.Z, cfg.Confidence)
		if err != nil {
			return nil, err
		}
		return StdPolicy{StdErr: cfg.StdErr, Z: z}, nil

	default:
		return nil, fmt.Errorf("%w: unknown method %q (want %q or %q)", ErrPolicyConfig, cfg.Method, PolicyFixed, PolicyStd)
	}
}

func resolveZ(z, confidence float64) (float64, error) {
	switch {
	case z != 0:
		if z < 0 || math.IsNaN(z) || math.IsInf(z, 0) {
			return 0, fmt.Errorf("%w: z must be positive, got %v", ErrPolicyConfig, z)
		}
		return z, nil
	case confidence != 0:
		if !(confidence > 0 && confidence < 1) {
			return 0, fmt.Errorf("%w: confidence must be in (0, 1), got %v", ErrPolicyConfig, confidence)
		}
		return ZForConfidence(confidence), nil
	default:
		return DefaultZ, nil
	}
}

// ZForConfidence returns the two-sided standard normal quantile for the
// given coverage, e.g. 0.95 -> ~1.96.
func ZForConfidence(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(0.5 + confidence/2)
}
