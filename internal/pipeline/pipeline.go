// Package pipeline runs the per-star fit: read, ingest, build the composite
// model, mask outliers, fit, store the result and record the job status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/fit"
	"github.com/cwbudde/algo-binspec/internal/config"
	"github.com/cwbudde/algo-binspec/internal/linelist"
	"github.com/cwbudde/algo-binspec/internal/status"
	"github.com/cwbudde/algo-binspec/internal/store"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

// ErrRunner is returned by NewRunner for missing collaborators.
var ErrRunner = errors.New("pipeline: incomplete runner")

// Outcome is the result of processing one star.
type Outcome struct {
	ID int64
	// State is status.Complete or status.Failed.
	State    string
	Reason   string
	Flags    observation.Flag
	Warnings []observation.Warning
	// Result is the last fit, possibly partial. Nil if no fit ran.
	Result *fit.Result
	Lines  []linelist.Residual
	Err    error
}

// Runner processes stars with a fixed configuration.
type Runner struct {
	cfg      *config.Config
	net      *synth.Network
	provider observation.Provider
	fallback observation.LSFFallback
	tracker  *status.Tracker
	store    *store.Store
	lines    []linelist.Line
	windows  []fit.Window
	log      zerolog.Logger
	runID    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLSFFallback supplies line-spread functions for CCDs without one.
func WithLSFFallback(f observation.LSFFallback) Option {
	return func(r *Runner) { r.fallback = f }
}

// WithTracker records every star in a status tree.
func WithTracker(t *status.Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithStore saves every outcome.
func WithStore(s *store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithLines enables per-line residual diagnostics.
func WithLines(lines []linelist.Line) Option {
	return func(r *Runner) { r.lines = lines }
}

// WithMaskWindows excludes rest-frame windows from every fit.
func WithMaskWindows(w []fit.Window) Option {
	return func(r *Runner) { r.windows = w }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithRunID sets the run identifier under which results are stored.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// NewRunner returns a Runner reading observations from provider.
func NewRunner(cfg *config.Config, net *synth.Network, provider observation.Provider, opts ...Option) (*Runner, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("%w: no configuration", ErrRunner)
	case net == nil:
		return nil, fmt.Errorf("%w: no network", ErrRunner)
	case provider == nil:
		return nil, fmt.Errorf("%w: no observation provider", ErrRunner)
	}
	r := &Runner{
		cfg:      cfg,
		net:      net,
		provider: provider,
		log:      zerolog.Nop(),
		runID:    store.NewRunID(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// RunID returns the run identifier.
func (r *Runner) RunID() string { return r.runID }

// Process fits one star. A failure of the star itself is reported in the
// Outcome and returned as its Err; other errors come from recording the
// outcome.
func (r *Runner) Process(ctx context.Context, id int64) (*Outcome, error) {
	log := r.log.With().Int64("sobject_id", id).Logger()
	out := &Outcome{ID: id}

	if r.tracker != nil {
		if err := r.tracker.Begin(id); err != nil {
			return out, err
		}
	}

	if err := r.process(ctx, log, out); err != nil {
		out.State, out.Reason, out.Err = status.Failed, Classify(err), err
		log.Error().Err(err).Str("reason", out.Reason).Msg("star failed")
	} else {
		out.State = status.Complete
		res := out.Result
		log.Info().
			Str("state", res.State.String()).
			Int("iterations", res.Iterations).
			Float64("rchi2", res.ReducedChi2).
			Float64("agreement", res.Agreement).
			Float64("f_contr", res.Params.FContr).
			Float64("rv_1", res.Params.RV1).
			Float64("rv_2", res.Params.RV2).
			Stringer("flags", out.Flags).
			Msg("star complete")
	}

	if err := r.record(context.WithoutCancel(ctx), out); err != nil {
		return out, err
	}
	return out, out.Err
}

func (r *Runner) process(ctx context.Context, log zerolog.Logger, out *Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := r.provider.Read(out.ID)
	if err != nil {
		return err
	}

	ingest := r.cfg.IngestOptions()
	if r.fallback != nil {
		ingest = append(ingest, observation.WithLSFFallback(r.fallback))
	}
	spec, warnings, err := observation.Ingest(raw, ingest...)
	out.Warnings = warnings
	for _, w := range warnings {
		log.Warn().Int("ccd", w.CCD).Msg(w.Message)
	}
	if spec != nil {
		out.Flags = spec.Flags
	}
	if err != nil {
		return err
	}

	model, err := binary.NewModel(r.net, spec, r.cfg.ModelOptions()...)
	if err != nil {
		return err
	}
	grids := model.Grids()
	for _, ccd := range model.CCDIndices() {
		g := grids[ccd]
		log.Debug().
			Int("ccd", ccd).
			Int("grid_points", g.Len()).
			Float64("kernel_width", g.KernelWidth).
			Msg("degrading grid")
	}

	maskOpts := r.cfg.MaskOptions()
	if len(r.windows) > 0 {
		maskOpts = append(maskOpts, fit.WithLineWindows(r.windows...))
	}
	fitOpts := append(r.cfg.FitOptions(), fit.WithObserver(func(ev fit.Event) {
		log.Debug().
			Int("iteration", ev.Iteration).
			Int("evaluations", ev.Evaluations).
			Str("state", ev.State.String()).
			Float64("cost", ev.Cost).
			Float64("lambda", ev.Lambda).
			Float64("agreement", ev.Agreement).
			Msg("fit progress")
	}))

	params := r.cfg.InitialParams()
	for pass := 0; pass <= r.cfg.Fit.Refits; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := model.Evaluate(params)
		if err != nil {
			return err
		}
		mask := fit.OutlierMask(ev, maskOpts...)

		res, err := fit.Fit(model, model.Layout(), params, mask, fitOpts...)
		if res != nil {
			out.Result = res
		}
		if err != nil {
			return err
		}
		params = res.Params
		log.Debug().
			Int("pass", pass).
			Str("state", res.State.String()).
			Str("reason", res.Reason).
			Int("iterations", res.Iterations).
			Float64("rchi2", res.ReducedChi2).
			Msg("fit pass finished")
	}

	if out.Result.State == fit.MaxIterations {
		spec.Flags.Set(observation.FlagNoConvergence)
	}
	out.Flags = spec.Flags

	if ev := out.Result.Eval; len(r.lines) > 0 && ev != nil {
		out.Lines = linelist.Residuals(r.lines, ev.RestWave, ev.Flux, ev.Model, r.cfg.Fit.LineHalfWidth)
		for _, l := range linelist.Worst(out.Lines, 3) {
			log.Debug().
				Str("line", l.Line.Label).
				Float64("wave", l.Line.Wave).
				Float64("mean_residual", l.Mean).
				Msg("line residual")
		}
	}
	return nil
}

// record stores the outcome and updates the status tree.
func (r *Runner) record(ctx context.Context, out *Outcome) error {
	var errs []error
	if r.store != nil {
		errs = append(errs, r.store.Save(ctx, r.recordOf(out)))
	}
	if r.tracker != nil {
		if out.State == status.Complete {
			errs = append(errs, r.tracker.Complete(out.ID))
		} else {
			errs = append(errs, r.tracker.Fail(out.ID, out.Reason))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) recordOf(out *Outcome) store.Record {
	nan := math.NaN()
	rec := store.Record{
		RunID:       r.runID,
		SobjectID:   out.ID,
		State:       out.State,
		Reason:      out.Reason,
		Agreement:   nan,
		ReducedChi2: nan,
		Chi2:        nan,
		Params: binary.Params{
			FContr: nan, RV1: nan, RV2: nan,
			Comp1: synth.MissingLabels(),
			Comp2: synth.MissingLabels(),
		},
		Flags: out.Flags,
	}
	if res := out.Result; res != nil {
		rec.Agreement = res.Agreement
		rec.ReducedChi2 = res.ReducedChi2
		rec.Chi2 = res.Chi2
		rec.Params = res.Params
		rec.Iterations = res.Iterations
		rec.Evaluations = res.Evaluations
	}
	return rec
}
