package binary

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-binspec/synth"
)

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458

// kiloKelvin converts temperatures between the parameter vector (kK) and
// the network (K).
const kiloKelvin = 1000.0

var (
	// ErrFContrRange is returned when f_contr lies outside [0, 1].
	ErrFContrRange = errors.New("binary: f_contr outside [0, 1]")
	// ErrVectorLength is returned when a parameter vector does not match
	// its layout.
	ErrVectorLength = errors.New("binary: parameter vector length mismatch")
)

// Params are the parameters of the composite model. RV1 and RV2 are in
// km/s, temperatures in K.
type Params struct {
	FContr float64
	RV1    float64
	RV2    float64
	Comp1  synth.Labels
	Comp2  synth.Labels
}

// Components returns the labels passed to the network. With a shared
// metallicity both components take Comp1.FeH.
func (p Params) Components(shared bool) (synth.Labels, synth.Labels) {
	c1, c2 := p.Comp1, p.Comp2
	if shared {
		c2.FeH = c1.FeH
	}
	return c1, c2
}

// Validate checks f_contr and the presence of every label.
func (p Params) Validate() error {
	if !(p.FContr >= 0 && p.FContr <= 1) {
		return fmt.Errorf("%w: %v", ErrFContrRange, p.FContr)
	}
	if err := p.Comp1.Validate(); err != nil {
		return fmt.Errorf("component 1: %w", err)
	}
	if err := p.Comp2.Validate(); err != nil {
		return fmt.Errorf("component 2: %w", err)
	}
	return nil
}

// Doppler moves wavelengths into the frame of a source with radial velocity
// rv: wave/(1+rv/c).
func Doppler(rv float64, wave []float64) []float64 {
	out := make([]float64, len(wave))
	DopplerTo(out, rv, wave)
	return out
}

// DopplerTo is Doppler writing into dst.
func DopplerTo(dst []float64, rv float64, wave []float64) {
	f := 1 / (1 + rv/SpeedOfLight)
	for i, w := range wave {
		dst[i] = w * f
	}
}

// Parameter names used in vectors and result records.
const (
	NameFContr = "f_contr"
	NameRV1    = "rv_1"
	NameRV2    = "rv_2"
	NameFeH    = synth.LabelFeH
)

// Layout is the fixed ordering of Params in a flat vector. Temperatures
// are stored in kK.
//
// Independent metallicities:
//
//	f_contr rv_1 teff_1 logg_1 fe_h_1 vmic_1 vsini_1 rv_2 teff_2 logg_2 fe_h_2 vmic_2 vsini_2
//
// Shared metallicity:
//
//	f_contr rv_1 teff_1 logg_1 vmic_1 vsini_1 rv_2 teff_2 logg_2 vmic_2 vsini_2 fe_h
type Layout struct {
	shared bool
	names  []string
	// perComp lists the label indices stored per component.
	perComp []int
}

// NewLayout returns the layout for shared or independent metallicity.
func NewLayout(shared bool) *Layout {
	l := &Layout{shared: shared}
	for i := range synth.NumLabels {
		if shared && synth.LabelNames[i] == synth.LabelFeH {
			continue
		}
		l.perComp = append(l.perComp, i)
	}
	l.names = append(l.names, NameFContr)
	for c, rv := range []string{NameRV1, NameRV2} {
		l.names = append(l.names, rv)
		for _, i := range l.perComp {
			l.names = append(l.names, fmt.Sprintf("%s_%d", synth.LabelNames[i], c+1))
		}
	}
	if shared {
		l.names = append(l.names, NameFeH)
	}
	return l
}

// Shared reports whether both components share one metallicity.
func (l *Layout) Shared() bool { return l.shared }

// Len returns the vector length.
func (l *Layout) Len() int { return len(l.names) }

// Names returns the parameter names in vector order.
func (l *Layout) Names() []string {
	return append([]string(nil), l.names...)
}

// Index returns the vector position of name.
func (l *Layout) Index(name string) (int, bool) {
	for i, n := range l.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Pack writes p into a new vector.
func (l *Layout) Pack(p Params) []float64 {
	v := make([]float64, 0, l.Len())
	v = append(v, p.FContr)
	for _, c := range []struct {
		rv     float64
		labels synth.Labels
	}{{p.RV1, p.Comp1}, {p.RV2, p.Comp2}} {
		v = append(v, c.rv)
		vec := c.labels.Vector()
		for _, i := range l.perComp {
			x := vec[i]
			if i == 0 {
				x /= kiloKelvin
			}
			v = append(v, x)
		}
	}
	if l.shared {
		v = append(v, p.Comp1.FeH)
	}
	return v
}

// Unpack reads a vector produced by Pack.
func (l *Layout) Unpack(v []float64) (Params, error) {
	if len(v) != l.Len() {
		return Params{}, fmt.Errorf("%w: got %d, want %d", ErrVectorLength, len(v), l.Len())
	}
	p := Params{FContr: v[0]}
	pos := 1
	comps := [2]*synth.Labels{&p.Comp1, &p.Comp2}
	rvs := [2]*float64{&p.RV1, &p.RV2}
	for c := range comps {
		*rvs[c] = v[pos]
		pos++
		var vec [synth.NumLabels]float64
		for i := range vec {
			vec[i] = math.NaN()
		}
		for _, i := range l.perComp {
			x := v[pos]
			if i == 0 {
				x *= kiloKelvin
			}
			vec[i] = x
			pos++
		}
		*comps[c] = synth.Labels{Teff: vec[0], Logg: vec[1], FeH: vec[2], Vmic: vec[3], Vsini: vec[4]}
	}
	if l.shared {
		p.Comp1.FeH = v[pos]
		p.Comp2.FeH = v[pos]
	}
	return p, nil
}

// Scales returns a typical step per parameter, used to make optimiser
// coordinates dimensionless.
func (l *Layout) Scales() []float64 {
	s := make([]float64, l.Len())
	for i, n := range l.names {
		s[i] = scaleOf(n)
	}
	return s
}

func scaleOf(name string) float64 {
	switch {
	case name == NameFContr:
		return 0.1
	case name == NameRV1 || name == NameRV2:
		return 1
	case hasPrefix(name, synth.LabelTeff):
		return 0.1 // kK
	case hasPrefix(name, synth.LabelVsini):
		return 1
	default:
		return 0.1
	}
}

// Bounds returns the lower and upper limit per parameter: f_contr in [0, 1]
// and non-negative broadening velocities.
func (l *Layout) Bounds() (lower, upper []float64) {
	lower = make([]float64, l.Len())
	upper = make([]float64, l.Len())
	for i, n := range l.names {
		lower[i], upper[i] = math.Inf(-1), math.Inf(1)
		switch {
		case n == NameFContr:
			lower[i], upper[i] = 0, 1
		case hasPrefix(n, synth.LabelVmic), hasPrefix(n, synth.LabelVsini):
			lower[i] = 0
		}
	}
	return lower, upper
}

func hasPrefix(name, label string) bool {
	return strings.HasPrefix(name, label+"_")
}
