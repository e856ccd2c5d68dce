package lsf

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-binspec/internal/poly"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// linearTolerance is the relative difference allowed between the first and
// the last synthetic wavelength step.
const linearTolerance = 1e-6

// Grid is a non-uniform wavelength grid on which the broadening kernel of
// one CCD has constant width. A Grid is immutable.
type Grid struct {
	// Wavelength holds the strictly increasing sample positions, starting
	// at the first synthetic wavelength.
	Wavelength []float64
	// KernelWidth is the kernel width in grid samples.
	KernelWidth float64
	// SynthStep is the constant step of the synthetic spectrum.
	SynthStep float64
	// NativeStep is the pixel step of the observed CCD.
	NativeStep float64
	// ResolvingPower is the resolving power of the synthetic spectrum.
	ResolvingPower float64
}

// Len returns the number of grid samples.
func (g *Grid) Len() int {
	return len(g.Wavelength)
}

// BuildGrid computes the degrading grid for a synthetic spectrum sampled on
// synthWave and an instrumental profile of a CCD with pixel step nativeStep.
//
// The kernel width needed at each wavelength is
// sqrt(sigma_inst^2 - sigma_synth^2), with sigma_synth = wave/R. It is
// smoothed with a polynomial and the grid advances by that width divided by
// a constant number of samples per width.
func BuildGrid(synthWave []float64, profile Profile, nativeStep float64, opts ...Option) (*Grid, error) {
	cfg := applyOptions(opts)

	n := len(synthWave)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least two synthetic samples, got %d", ErrLengthMismatch, n)
	}
	if err := profile.validate(); err != nil {
		return nil, err
	}
	if !(nativeStep > 0) {
		return nil, fmt.Errorf("%w: native step %v", ErrGridStep, nativeStep)
	}

	sigmaSynth := make([]float64, n)
	floats.ScaleTo(sigmaSynth, 1/cfg.resolvingPower, synthWave)
	maxSynth := floats.Max(sigmaSynth)
	minInst := floats.Min(profile.Sigma)
	if maxSynth >= minInst*cfg.safetyMargin {
		return nil, fmt.Errorf("%w: synthetic width %.4g, narrowest instrumental width %.4g",
			ErrInsufficientResolution, maxSynth, minInst)
	}

	step := synthWave[1] - synthWave[0]
	lastStep := synthWave[n-1] - synthWave[n-2]
	if !(step > 0) || math.Abs(lastStep-step) > linearTolerance*step {
		return nil, fmt.Errorf("%w: first step %v, last step %v", ErrNonLinearSampling, step, lastStep)
	}

	inst, err := resampleProfile(profile, synthWave)
	if err != nil {
		return nil, err
	}
	width := make([]float64, n)
	for i := range width {
		width[i] = math.Sqrt(inst[i]*inst[i] - sigmaSynth[i]*sigmaSynth[i])
	}
	widthFit, err := poly.Fit(synthWave, width, cfg.polynomialDegree, poly.Power, nil)
	if err != nil {
		return nil, fmt.Errorf("lsf: kernel width polynomial: %w", err)
	}

	oversample := nativeStep / step * cfg.oversample
	minSampling := maxSynth / step / step * oversample
	end := synthWave[n-1] + step

	// Expected size: synthetic span over the narrowest grid step.
	estimate := int((end-synthWave[0])/(floats.Min(width)/step/minSampling)) + 2
	wave := make([]float64, 1, min(max(estimate, 2), cfg.maxPoints))
	wave[0] = synthWave[0]
	for last := wave[0]; last < end; {
		inc := widthFit.Eval(last) / step / minSampling
		if !(inc > 0) || math.IsInf(inc, 0) {
			return nil, fmt.Errorf("%w: step %v at %.4f", ErrGridStep, inc, last)
		}
		last += inc
		wave = append(wave, last)
		if len(wave) > cfg.maxPoints {
			return nil, fmt.Errorf("%w: more than %d samples", ErrGridStep, cfg.maxPoints)
		}
	}

	return &Grid{
		Wavelength:     wave,
		KernelWidth:    maxSynth / step * oversample,
		SynthStep:      step,
		NativeStep:     nativeStep,
		ResolvingPower: cfg.resolvingPower,
	}, nil
}

// resampleProfile linearly interpolates the instrumental width onto wave,
// holding the end values outside the profile.
func resampleProfile(p Profile, wave []float64) ([]float64, error) {
	out := make([]float64, len(wave))
	if len(p.Sigma) == 1 {
		for i := range out {
			out[i] = p.Sigma[0]
		}
		return out, nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(p.Wavelength, p.Sigma); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	for i, w := range wave {
		out[i] = pl.Predict(w)
	}
	return out, nil
}
