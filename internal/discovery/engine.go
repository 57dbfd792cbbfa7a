// Package discovery locates an implementation module, its model weights and
// reference data under a root directory, loads the module into a private
// interpreter and wraps its entry point as a forecast.Predictor.
//
// A run moves through SCANNING, SELECTING, LOADING and VALIDATING and ends
// in READY or FAILED. Runs are independent: the engine keeps nothing between
// calls and never reloads on its own.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forecast-miner/internal/dataset"
	"forecast-miner/internal/forecast"
	"forecast-miner/internal/plugin"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the engine.
type MetricsInterface interface {
	DiscoveriesInc(outcome string)
	DiscoveryDurationObserve(float64)
	ModelAgeSet(float64)
}

// Recorder persists the report of every finished run.
type Recorder interface {
	RecordDiscovery(Report) error
}

// Result is the outcome of a READY run.
type Result struct {
	Predictor   *forecast.FuncModel
	Selection   Selection
	Conformance plugin.Conformance
	Module      *plugin.Module
	Data        *dataset.Table
	Report      Report
}

// Engine runs discovery with a fixed configuration and interval policy.
type Engine struct {
	cfg          Config
	policy       forecast.IntervalPolicy
	metrics      MetricsInterface
	recorder     Recorder
	modelOptions []forecast.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches discovery metrics.
func WithMetrics(m MetricsInterface) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder persists run reports.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithModelOptions passes options to the FuncModel built on success.
func WithModelOptions(opts ...forecast.Option) Option {
	return func(e *Engine) { e.modelOptions = append(e.modelOptions, opts...) }
}

// New validates cfg and returns an engine. policy may be nil only if the
// implementation returns its own intervals.
func New(cfg Config, policy forecast.IntervalPolicy, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, policy: policy}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Discover runs one discovery. On failure the result is nil and the error is
// a *DiscoveryError; it is logged once here.
func (e *Engine) Discover(ctx context.Context) (*Result, error) {
	report := &Report{Root: e.cfg.Root}
	res, err := e.run(ctx, report)

	outcome := "ready"
	if err != nil {
		outcome = "failed"
		report.enter(Failed)
		report.Error = err.Error()
		log.Error().Err(err).Str("root", e.cfg.Root).Msg("discovery failed, no prediction capability loaded")
	} else {
		report.enter(Ready)
		res.Report = *report
		log.Info().
			Str("module", report.Selection.Module).
			Str("model", report.Selection.Model).
			Str("data", report.Selection.Data).
			Str("signature", report.Signature).
			Dur("took", report.Duration()).
			Msg("implementation module ready")
	}

	if e.metrics != nil {
		e.metrics.DiscoveriesInc(outcome)
		e.metrics.DiscoveryDurationObserve(report.Duration().Seconds())
	}
	if e.recorder != nil {
		if rerr := e.recorder.RecordDiscovery(*report); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to record discovery report")
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) run(ctx context.Context, report *Report) (*Result, error) {
	report.enter(Scanning)
	if err := ctx.Err(); err != nil {
		return nil, &DiscoveryError{Stage: Scanning, Root: e.cfg.Root, Err: err}
	}
	cands, err := scan(e.cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("root", cands.Root).
		Int("modules", len(cands.Modules)).
		Int("models", len(cands.Models)).
		Int("data", len(cands.Data)).
		Int("excluded", len(cands.Excluded)).
		Msg("scan complete")

	report.enter(Selecting)
	report.Root = cands.Root
	sel, err := cands.Select(e.cfg)
	if err != nil {
		return nil, err
	}
	report.Selection = sel
	if len(cands.Modules) > 1 {
		log.Warn().Strs("candidates", cands.Modules).Str("selected", sel.Module).
			Msg("multiple implementation modules found, using the first")
	}

	report.enter(Loading)
	if err := ctx.Err(); err != nil {
		return nil, &DiscoveryError{Stage: Loading, Root: cands.Root, Err: err}
	}
	var table *dataset.Table
	if sel.Data != "" {
		table, err = dataset.Load(sel.Data)
		if err != nil {
			return nil, &DiscoveryError{Stage: Loading, Kind: KindData, Path: sel.Data, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)}
		}
	}
	if sel.Model != "" {
		info, err := os.Stat(sel.Model)
		if err != nil {
			return nil, &DiscoveryError{Stage: Loading, Kind: KindModel, Path: sel.Model, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)}
		}
		if e.metrics != nil {
			e.metrics.ModelAgeSet(time.Since(info.ModTime()).Seconds())
		}
	}

	baseDir := filepath.Dir(sel.Module)
	loader := plugin.Loader{
		BaseDir: baseDir,
		Helpers: e.cfg.ReservedNames,
		Artifacts: &plugin.Artifacts{
			BaseDir:   baseDir,
			ModelPath: sel.Model,
			DataPath:  sel.Data,
			Data:      table,
		},
	}
	mod, err := loader.Load(sel.Module)
	if err != nil {
		return nil, &DiscoveryError{Stage: Loading, Kind: KindModule, Path: sel.Module, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)}
	}

	report.enter(Validating)
	sym, err := mod.Lookup(e.cfg.EntryPoint)
	if err != nil {
		return nil, &DiscoveryError{Stage: Validating, Kind: KindModule, Path: sel.Module,
			Err: fmt.Errorf("%w: %s", ErrEntryPointMissing, e.cfg.EntryPoint)}
	}
	conf := plugin.Check(e.cfg.EntryPoint, sym)
	if !conf.Conforms() {
		return nil, &DiscoveryError{Stage: Validating, Kind: KindModule, Path: sel.Module,
			Err: fmt.Errorf("%w: %s", ErrNonConforming, conf.Reason)}
	}
	if !conf.Output.HasInterval() && e.policy == nil {
		return nil, &DiscoveryError{Stage: Validating, Kind: KindModule, Path: sel.Module,
			Err: fmt.Errorf("%w: %s returns no interval and no interval policy is configured", ErrNonConforming, e.cfg.EntryPoint)}
	}
	fn, err := conf.Bind()
	if err != nil {
		return nil, &DiscoveryError{Stage: Validating, Kind: KindModule, Path: sel.Module, Err: fmt.Errorf("%w: %v", ErrNonConforming, err)}
	}
	report.Signature = conf.Signature()

	source, _ := filepath.Rel(cands.Root, sel.Module)
	opts := append([]forecast.Option{forecast.WithSource(filepath.ToSlash(source))}, e.modelOptions...)

	return &Result{
		Predictor:   forecast.NewFuncModel(fn, e.policy, opts...),
		Selection:   sel,
		Conformance: conf,
		Module:      mod,
		Data:        table,
	}, nil
}
