// Package fixture builds small deterministic networks and observations for
// tests of the forward model and the fitter.
package fixture

import (
	"math"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
	"gonum.org/v1/gonum/mat"
)

// Synthetic grid of the line-forming network.
const (
	SynthStart = 5000.0
	SynthStep  = 0.01
	SynthLen   = 1201
)

// Observed CCD layout.
const (
	CCDIndex  = 1
	CCDCrval  = 5002.0
	CCDCdelt  = 0.05
	CCDPixels = 160
	CCDLSF    = 0.15
	CCDLSFB   = 2.0
	// ContinuumLevel is the mean counts level of the observation.
	ContinuumLevel = 1000.0
	// RelativeUncertainty is the counts uncertainty relative to the counts.
	RelativeUncertainty = 0.01
)

const (
	hidden     = 8
	lineSigma  = 0.05
	lineDepth  = 0.3
	firstLine  = 5003.1
	lineStride = 0.83
)

// LineCentres returns the rest wavelengths of the network's absorption lines.
func LineCentres() []float64 {
	c := make([]float64, hidden)
	for j := range c {
		c[j] = firstLine + float64(j)*lineStride
	}
	return c
}

// Network returns a network whose output is a continuum at 1 with eight
// Gaussian absorption lines. Every hidden unit stays in the linear regime,
// so each line depth is an affine function of the scaled labels.
func Network() *synth.Network {
	w0 := mat.NewDense(synth.NumLabels, synth.NumLabels, nil)
	b0 := make([]float64, synth.NumLabels)
	for i := range synth.NumLabels {
		w0.Set(i, i, 1)
		b0[i] = 1
	}

	w1 := mat.NewDense(hidden, synth.NumLabels, nil)
	b1 := make([]float64, hidden)
	for j := range hidden {
		sum := 0.0
		for k := range synth.NumLabels {
			v := 0.25 * math.Sin(1.3*float64((j+1)*(k+1))+0.4*float64(j))
			w1.Set(j, k, v)
			sum += v
		}
		// h = 1 + w1·scaled for inputs 1 + scaled.
		b1[j] = 1 - sum
	}

	wave := Wavelength()
	centres := LineCentres()
	w2 := mat.NewDense(SynthLen, hidden, nil)
	b2 := make([]float64, SynthLen)
	for p, w := range wave {
		b2[p] = 1
		for j, c := range centres {
			d := (w - c) / lineSigma
			w2.Set(p, j, -lineDepth*math.Exp(-0.5*d*d))
		}
	}

	net, err := synth.NewNetwork(synth.Coefficients{
		W0: w0, W1: w1, W2: w2,
		B0: b0, B1: b1, B2: b2,
		XMin: []float64{4000, 3, -1, 0.5, 0},
		XMax: []float64{7000, 5, 0.5, 2.5, 20},
	}, wave)
	if err != nil {
		panic(err)
	}
	return net
}

// Wavelength returns the native grid of Network.
func Wavelength() []float64 {
	w := make([]float64, SynthLen)
	for i := range w {
		w[i] = SynthStart + float64(i)*SynthStep
	}
	return w
}

// Windows returns a synthesis window covering the whole network for the
// fixture CCD.
func Windows() map[int]binary.Range {
	return map[int]binary.Range{CCDIndex: {Lo: SynthStart - 1, Hi: SynthStart + SynthLen*SynthStep + 1}}
}

// Truth returns the parameters used to generate the reference observation.
func Truth() binary.Params {
	return binary.Params{
		FContr: 0.6,
		RV1:    10,
		RV2:    -15,
		Comp1:  synth.Labels{Teff: 5800, Logg: 4.3, FeH: 0, Vmic: 1.2, Vsini: 4},
		Comp2:  synth.Labels{Teff: 5200, Logg: 4.5, FeH: 0, Vmic: 1.0, Vsini: 3},
	}
}

// Continuum is the smooth counts continuum applied to the observation.
func Continuum(wave float64) float64 {
	t := (wave - CCDCrval) / (CCDCdelt * (CCDPixels - 1))
	return ContinuumLevel * (1 + 0.05*t - 0.03*t*t)
}

// Raw returns an observation whose counts are all at the continuum level.
func Raw(id int64) *observation.Raw {
	rc := &observation.RawCCD{
		Crval:  CCDCrval,
		Cdelt:  CCDCdelt,
		Counts: make([]float64, CCDPixels),
		RelUnc: make([]float64, CCDPixels),
		LSF:    make([]float64, CCDPixels),
		LSFB:   CCDLSFB,
	}
	for i := range rc.Counts {
		rc.Counts[i] = Continuum(CCDCrval + float64(i)*CCDCdelt)
		rc.RelUnc[i] = RelativeUncertainty
		rc.LSF[i] = CCDLSF
	}
	return &observation.Raw{
		ID:           id,
		Plate:        1,
		WavelengthOK: true,
		CrossTalkOK:  true,
		CCDs:         map[int]*observation.RawCCD{CCDIndex: rc},
	}
}

// Observation returns a noise-free observation of the binary described by
// truth: the composite model times Continuum, with 1% uncertainties.
func Observation(net *synth.Network, truth binary.Params) (*observation.Raw, error) {
	raw := Raw(1)
	spec, _, err := observation.Ingest(raw)
	if err != nil {
		return nil, err
	}
	model, err := binary.NewModel(net, spec, binary.WithCCDWindows(Windows()))
	if err != nil {
		return nil, err
	}
	ev, err := model.Evaluate(truth)
	if err != nil {
		return nil, err
	}
	rc := raw.CCDs[CCDIndex]
	for i := range rc.Counts {
		rc.Counts[i] = ev.Model[i] * Continuum(ev.Wave[i])
	}
	return raw, nil
}

// Spectrum ingests Observation.
func Spectrum(net *synth.Network, truth binary.Params) (*observation.Spectrum, error) {
	raw, err := Observation(net, truth)
	if err != nil {
		return nil, err
	}
	spec, _, err := observation.Ingest(raw)
	return spec, err
}

// Provider serves fixture observations by identifier.
type Provider map[int64]*observation.Raw

// Read implements observation.Provider.
func (p Provider) Read(id int64) (*observation.Raw, error) {
	raw, ok := p[id]
	if !ok {
		return nil, observation.ErrMissingObservation
	}
	return raw, nil
}
