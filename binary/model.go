package binary

import (
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/cwbudde/algo-binspec/continuum"
	"github.com/cwbudde/algo-binspec/lsf"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
	"gonum.org/v1/gonum/interp"
)

var (
	// ErrEmptyWindow is returned when the network has no wavelengths in
	// the synthesis window of a CCD.
	ErrEmptyWindow = errors.New("binary: empty synthesis window")
	// ErrNoCCDs is returned for a spectrum without usable CCDs.
	ErrNoCCDs = errors.New("binary: spectrum has no usable CCDs")
)

// Range is an open wavelength interval.
type Range struct {
	Lo, Hi float64
}

// DefaultCCDWindows returns the synthesis window of each CCD: CCD i is
// synthesised from ((3+i)*1000, (4+i)*1000) Å.
func DefaultCCDWindows() map[int]Range {
	w := make(map[int]Range, observation.NumCCDs)
	for i := 1; i <= observation.NumCCDs; i++ {
		w[i] = Range{Lo: float64(3+i) * 1000, Hi: float64(4+i) * 1000}
	}
	return w
}

const (
	renormSigma     = 5
	renormMinPoints = 100
	// splineMargin is the number of grid points kept beyond each end of the
	// observed pixels so the spline end conditions fall outside the CCD.
	splineMargin = 8
)

type config struct {
	shared      bool
	windows     map[int]Range
	continuum   []continuum.Option
	gridOptions []lsf.Option
}

// Option configures a Model.
type Option func(*config)

// WithSharedMetallicity makes both components use the metallicity of the
// primary.
func WithSharedMetallicity(shared bool) Option {
	return func(c *config) { c.shared = shared }
}

// WithCCDWindows replaces the synthesis windows. CCDs without a window keep
// the default.
func WithCCDWindows(w map[int]Range) Option {
	return func(c *config) { maps.Copy(c.windows, w) }
}

// WithContinuum appends options to the renormalisation fit.
func WithContinuum(opts ...continuum.Option) Option {
	return func(c *config) { c.continuum = append(c.continuum, opts...) }
}

// WithGridOptions appends options used when building the degrading grids.
func WithGridOptions(opts ...lsf.Option) Option {
	return func(c *config) { c.gridOptions = append(c.gridOptions, opts...) }
}

type ccdModel struct {
	ccd      *observation.CCD
	wave     []float64
	lo, hi   int
	degrader *lsf.Degrader
	start    int
}

// Model evaluates the composite spectrum of one star. The degrading grids
// of all usable CCDs are built once in NewModel.
//
// A Model is not safe for concurrent use.
type Model struct {
	net    *synth.Network
	spec   *observation.Spectrum
	shared bool
	ccds   []ccdModel
	renorm []continuum.Option
	pixels int
}

// NewModel prepares the composite model of spec.
func NewModel(net *synth.Network, spec *observation.Spectrum, opts ...Option) (*Model, error) {
	cfg := config{shared: true, windows: DefaultCCDWindows()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(spec.Usable) == 0 {
		return nil, ErrNoCCDs
	}

	rej, err := continuum.NewRejection(&continuum.SigmaClip{Lower: renormSigma, Upper: renormSigma}, nil)
	if err != nil {
		return nil, err
	}
	m := &Model{
		net:    net,
		spec:   spec,
		shared: cfg.shared,
		renorm: append([]continuum.Option{
			continuum.WithRejection(rej),
			continuum.WithIterations(3),
			continuum.WithMinPoints(renormMinPoints),
		}, cfg.continuum...),
	}

	gridOpts := append([]lsf.Option{lsf.WithResolvingPower(net.ResolvingPower())}, cfg.gridOptions...)
	for _, c := range spec.UsableCCDs() {
		win, ok := cfg.windows[c.Index]
		if !ok {
			return nil, fmt.Errorf("%w: no window for CCD%d", ErrEmptyWindow, c.Index)
		}
		lo, hi := net.Window(win.Lo, win.Hi)
		if hi-lo < 2 {
			return nil, fmt.Errorf("%w: CCD%d (%.0f, %.0f)", ErrEmptyWindow, c.Index, win.Lo, win.Hi)
		}
		grid, err := lsf.BuildGrid(net.Wavelength()[lo:hi], c.Profile(), c.Cdelt, gridOpts...)
		if err != nil {
			return nil, fmt.Errorf("CCD%d: %w", c.Index, err)
		}
		d, err := lsf.NewDegrader(grid, c.LSFB)
		if err != nil {
			return nil, fmt.Errorf("CCD%d: %w", c.Index, err)
		}
		m.ccds = append(m.ccds, ccdModel{
			ccd: c, wave: c.Wavelength(), lo: lo, hi: hi, degrader: d, start: m.pixels,
		})
		m.pixels += c.Len()
	}
	return m, nil
}

// Shared reports whether the model uses one metallicity for both components.
func (m *Model) Shared() bool { return m.shared }

// Layout returns the parameter layout matching the model.
func (m *Model) Layout() *Layout { return NewLayout(m.shared) }

// Spectrum returns the observation being modelled.
func (m *Model) Spectrum() *observation.Spectrum { return m.spec }

// Pixels returns the number of concatenated observed pixels.
func (m *Model) Pixels() int { return m.pixels }

// Grids returns the degrading grid of each usable CCD keyed by index.
func (m *Model) Grids() map[int]*lsf.Grid {
	g := make(map[int]*lsf.Grid, len(m.ccds))
	for _, c := range m.ccds {
		g[c.ccd.Index] = c.degrader.Grid()
	}
	return g
}

// CCDBound locates one CCD inside the concatenated arrays.
type CCDBound struct {
	Index      int
	Start, End int
}

// Evaluation is the composite model and renormalised observation on the
// concatenated observed pixels of the usable CCDs.
type Evaluation struct {
	Wave []float64
	// RestWave is Wave in the frame of the primary.
	RestWave []float64
	Flux     []float64
	Sigma2   []float64
	Model    []float64
	// Component1 and Component2 are the unweighted components.
	Component1 []float64
	Component2 []float64
	// Params has the shared metallicity applied to both components.
	Params    Params
	CCDBounds []CCDBound
}

// Evaluate computes the composite model for p.
func (m *Model) Evaluate(p Params) (*Evaluation, error) {
	c1, c2 := p.Components(m.shared)
	p.Comp1, p.Comp2 = c1, c2
	if err := p.Validate(); err != nil {
		return nil, err
	}

	flux1, err := m.net.Spectrum(c1)
	if err != nil {
		return nil, fmt.Errorf("component 1: %w", err)
	}
	flux2, err := m.net.Spectrum(c2)
	if err != nil {
		return nil, fmt.Errorf("component 2: %w", err)
	}

	n := m.pixels
	ev := &Evaluation{
		Wave:       make([]float64, 0, n),
		Flux:       make([]float64, n),
		Sigma2:     make([]float64, n),
		Model:      make([]float64, n),
		Component1: make([]float64, n),
		Component2: make([]float64, n),
		Params:     p,
	}
	synthWave := m.net.Wavelength()

	for _, c := range m.ccds {
		end := c.start + c.ccd.Len()
		sw := synthWave[c.lo:c.hi]
		if err := c.component(ev.Component1[c.start:end], sw, flux1[c.lo:c.hi], p.RV1); err != nil {
			return nil, fmt.Errorf("CCD%d component 1: %w", c.ccd.Index, err)
		}
		if err := c.component(ev.Component2[c.start:end], sw, flux2[c.lo:c.hi], p.RV2); err != nil {
			return nil, fmt.Errorf("CCD%d component 2: %w", c.ccd.Index, err)
		}

		model := ev.Model[c.start:end]
		for i := range model {
			model[i] = p.FContr*ev.Component1[c.start+i] + (1-p.FContr)*ev.Component2[c.start+i]
		}

		if err := m.renormalise(c, model, ev.Flux[c.start:end], ev.Sigma2[c.start:end]); err != nil {
			return nil, fmt.Errorf("CCD%d renormalisation: %w", c.ccd.Index, err)
		}
		ev.Wave = append(ev.Wave, c.wave...)
		ev.CCDBounds = append(ev.CCDBounds, CCDBound{Index: c.ccd.Index, Start: c.start, End: end})
	}
	ev.RestWave = Doppler(p.RV1, ev.Wave)
	return ev, nil
}

// component broadens one synthetic spectrum and interpolates it onto the
// observed pixels of the CCD for a source moving with rv.
func (c *ccdModel) component(dst, synthWave, synthFlux []float64, rv float64) error {
	degraded, err := c.degrader.Degrade(synthWave, synthFlux)
	if err != nil {
		return err
	}
	observed := Doppler(-rv, c.degrader.Grid().Wavelength)
	lo, hi := bracket(observed, c.wave[0], c.wave[len(c.wave)-1], splineMargin)

	var spline interp.NaturalCubic
	if err := spline.Fit(observed[lo:hi], degraded[lo:hi]); err != nil {
		return fmt.Errorf("spline: %w", err)
	}
	for i, w := range c.wave {
		dst[i] = spline.Predict(w)
	}
	return nil
}

// bracket returns the index range of the increasing x that covers [lo, hi]
// widened by margin samples on each side.
func bracket(x []float64, lo, hi float64, margin int) (int, int) {
	i := sort.SearchFloat64s(x, lo) - 1 - margin
	j := sort.SearchFloat64s(x, hi) + 1 + margin
	return max(i, 0), min(j, len(x))
}

// renormalise fits the ratio of counts to model and divides the counts and
// their uncertainty by it.
func (m *Model) renormalise(c ccdModel, model, flux, sigma2 []float64) error {
	counts, unc := c.ccd.Counts, c.ccd.CountsUnc
	ratio := make([]float64, len(model))
	ratioUnc := make([]float64, len(model))
	for i := range model {
		ratio[i] = counts[i] / model[i]
		ratioUnc[i] = unc[i] / model[i]
	}
	res, err := continuum.Normalize(c.wave, ratio, ratioUnc, m.renorm...)
	if err != nil {
		return err
	}
	for i, f := range res.Fit {
		flux[i] = counts[i] / f
		u := unc[i] / f
		sigma2[i] = u * u
	}
	return nil
}

// CCDIndices returns the modelled CCD indices in order.
func (m *Model) CCDIndices() []int {
	idx := make([]int, len(m.ccds))
	for i, c := range m.ccds {
		idx[i] = c.ccd.Index
	}
	return idx
}
