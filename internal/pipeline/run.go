package pipeline

import (
	"context"
	"errors"
	"io/fs"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/continuum"
	"github.com/cwbudde/algo-binspec/fit"
	"github.com/cwbudde/algo-binspec/internal/config"
	"github.com/cwbudde/algo-binspec/lsf"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

// Failure reasons used in the status tree and the result store.
const (
	ReasonMissingFile    = "missing_file"
	ReasonNoCCDs         = "noCCDs"
	ReasonResolvingPower = "resolving_power"
	ReasonConfiguration  = "configuration"
	ReasonDiverged       = "diverged"
	ReasonCancelled      = "cancelled"
	ReasonError          = "error"
)

// Classify maps a processing error to a failure reason.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, observation.ErrMissingObservation), errors.Is(err, fs.ErrNotExist):
		return ReasonMissingFile
	case errors.Is(err, observation.ErrNoUsableCCDs), errors.Is(err, binary.ErrNoCCDs):
		return ReasonNoCCDs
	case errors.Is(err, lsf.ErrResolution):
		return ReasonResolvingPower
	case errors.Is(err, synth.ErrMissingLabel),
		errors.Is(err, continuum.ErrConflictingRejection),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, binary.ErrEmptyWindow),
		errors.Is(err, binary.ErrFContrRange):
		return ReasonConfiguration
	case errors.Is(err, fit.ErrNumericDivergence):
		return ReasonDiverged
	default:
		return ReasonError
	}
}

// Run processes ids with at most workers stars in flight. Failed stars do
// not stop the batch; the returned error is a bookkeeping failure or the
// cancellation of ctx. Outcomes are in the order of ids; stars never
// started are nil.
func (r *Runner) Run(ctx context.Context, ids []int64, workers int) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := r.Process(gctx, id)
			outcomes[i] = out
			if err != nil && !errors.Is(err, out.Err) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}
