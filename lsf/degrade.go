package lsf

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-binspec/internal/conv"
	"gonum.org/v1/gonum/interp"
)

// Degrader applies the instrumental broadening of one CCD. It owns the
// degrading grid and the kernel spectrum, both computed once.
//
// Kernels up to conv.DirectThreshold samples are applied in the sample
// domain; longer ones through a cached overlap-add convolver.
//
// A Degrader keeps scratch buffers and is not safe for concurrent use.
type Degrader struct {
	grid      *Grid
	b         float64
	kernel    []float64
	conv      *conv.OverlapAdd
	resampled []float64
}

// NewDegrader prepares the broadening of spectra onto grid with kernel shape
// b (2 for Gaussian).
func NewDegrader(grid *Grid, b float64) (*Degrader, error) {
	if grid == nil || grid.Len() < 2 {
		return nil, fmt.Errorf("%w: empty grid", ErrGridStep)
	}
	k, err := Kernel(grid.KernelWidth, b)
	if err != nil {
		return nil, err
	}
	d := &Degrader{
		grid:      grid,
		b:         b,
		kernel:    k,
		resampled: make([]float64, grid.Len()),
	}
	if len(k) > conv.DirectThreshold {
		d.conv, err = conv.NewOverlapAdd(k, blockSizeFor(grid.Len()))
		if err != nil {
			return nil, fmt.Errorf("lsf: kernel convolver: %w", err)
		}
	}
	return d, nil
}

// Grid returns the degrading grid.
func (d *Degrader) Grid() *Grid { return d.grid }

// Kernel returns the normalised broadening kernel. The slice must not be
// modified.
func (d *Degrader) Kernel() []float64 { return d.kernel }

// Shape returns the kernel shape exponent.
func (d *Degrader) Shape() float64 { return d.b }

// Degrade resamples the synthetic spectrum onto the grid and convolves it
// with the kernel. The result is sampled on Grid().Wavelength.
func (d *Degrader) Degrade(synthWave, synthFlux []float64) ([]float64, error) {
	out := make([]float64, d.grid.Len())
	if err := d.DegradeTo(out, synthWave, synthFlux); err != nil {
		return nil, err
	}
	return out, nil
}

// DegradeTo writes the degraded spectrum into dst, which must have
// Grid().Len() samples.
func (d *Degrader) DegradeTo(dst, synthWave, synthFlux []float64) error {
	if len(synthWave) != len(synthFlux) {
		return fmt.Errorf("%w: %d wavelengths, %d fluxes", ErrLengthMismatch, len(synthWave), len(synthFlux))
	}
	if len(synthWave) < 2 {
		return fmt.Errorf("%w: need at least two synthetic samples", ErrLengthMismatch)
	}
	n := len(synthWave)
	step := synthWave[1] - synthWave[0]
	if math.Abs((synthWave[n-1]-synthWave[n-2])-step) > linearTolerance*step {
		return fmt.Errorf("%w: first step %v, last step %v", ErrNonLinearSampling, step, synthWave[n-1]-synthWave[n-2])
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(synthWave, synthFlux); err != nil {
		return fmt.Errorf("lsf: resample: %w", err)
	}
	for i, w := range d.grid.Wavelength {
		d.resampled[i] = pl.Predict(w)
	}
	if d.conv == nil {
		if len(dst) != len(d.resampled) {
			return fmt.Errorf("%w: dst has %d samples, grid %d", ErrLengthMismatch, len(dst), len(d.resampled))
		}
		out, err := conv.Same(d.resampled, d.kernel)
		if err != nil {
			return fmt.Errorf("lsf: convolve: %w", err)
		}
		copy(dst, out)
		return nil
	}
	if err := d.conv.ProcessSameTo(dst, d.resampled); err != nil {
		return fmt.Errorf("lsf: convolve: %w", err)
	}
	return nil
}

// Degrade is the one-shot path: it builds the degrading grid for profile and
// broadens the synthetic spectrum on it. Use a [Degrader] when the same CCD
// is degraded repeatedly.
func Degrade(synthWave, synthFlux []float64, profile Profile, nativeStep, b float64, opts ...Option) (*Grid, []float64, error) {
	grid, err := BuildGrid(synthWave, profile, nativeStep, opts...)
	if err != nil {
		return nil, nil, err
	}
	d, err := NewDegrader(grid, b)
	if err != nil {
		return nil, nil, err
	}
	flux, err := d.Degrade(synthWave, synthFlux)
	if err != nil {
		return nil, nil, err
	}
	return grid, flux, nil
}

// blockSizeFor picks an overlap-add block length for a signal of n samples.
func blockSizeFor(n int) int {
	switch {
	case n <= 4096:
		return 1024
	case n <= 65536:
		return 4096
	default:
		return 16384
	}
}
