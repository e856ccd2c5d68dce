package observation

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

var (
	// ErrMissingObservation is returned when no spectrum can be read for
	// an identifier.
	ErrMissingObservation = errors.New("observation: missing observation")
	// ErrNoUsableCCDs is returned when every CCD failed a quality check.
	ErrNoUsableCCDs = errors.New("observation: no usable CCDs")
	// ErrMalformed is returned when the arrays of a CCD disagree in length.
	ErrMalformed = errors.New("observation: malformed CCD data")
)

const (
	// IRCCD is the CCD whose blue end suffers from telluric residuals.
	IRCCD = 4
	// DefaultIRCutoff is the wavelength below which IRCCD pixels are
	// discarded.
	DefaultIRCutoff = 7680.0
	// DefaultNegativeFluxFraction is the largest tolerated fraction of
	// negative counts in a CCD.
	DefaultNegativeFluxFraction = 0.05
	// fallbackRelativeUncertainty replaces non-positive relative
	// uncertainties (signal-to-noise 10).
	fallbackRelativeUncertainty = 0.1
)

// Raw is the data a Provider returns for one star.
type Raw struct {
	ID           int64
	TwoMassID    string
	SlitMask     string
	Plate        int
	WavelengthOK bool
	CrossTalkOK  bool
	CCDs         map[int]*RawCCD
}

// RawCCD is the unvalidated content of one CCD file.
type RawCCD struct {
	Crval, Cdelt float64
	Counts       []float64
	// RelUnc is the relative counts uncertainty.
	RelUnc []float64
	LSF    []float64
	LSFB   float64
}

// Provider reads raw spectra by star identifier.
type Provider interface {
	Read(id int64) (*Raw, error)
}

// LSFFallback supplies a line-spread function when a CCD reports none,
// typically the profile of the closest observation on the same fibre and
// plate.
type LSFFallback interface {
	ClosestLSF(id int64, plate, ccd int, res Resolution) (lsf []float64, b float64, err error)
}

type ingestConfig struct {
	irCutoff      float64
	cutIR         bool
	fallback      LSFFallback
	negativeLimit float64
}

// IngestOption configures Ingest.
type IngestOption func(*ingestConfig)

// WithIRCutoff sets the wavelength below which IR CCD pixels are dropped.
func WithIRCutoff(wave float64) IngestOption {
	return func(c *ingestConfig) {
		c.cutIR = true
		c.irCutoff = wave
	}
}

// WithoutIRCutoff keeps the whole IR CCD.
func WithoutIRCutoff() IngestOption {
	return func(c *ingestConfig) { c.cutIR = false }
}

// WithLSFFallback sets the source of replacement line-spread functions.
func WithLSFFallback(f LSFFallback) IngestOption {
	return func(c *ingestConfig) { c.fallback = f }
}

// WithNegativeFluxFraction sets the tolerated fraction of negative counts.
func WithNegativeFluxFraction(f float64) IngestOption {
	return func(c *ingestConfig) {
		if f >= 0 && f < 1 {
			c.negativeLimit = f
		}
	}
}

// Ingest validates raw data and builds a Spectrum. Recoverable problems
// are returned as warnings; ErrNoUsableCCDs is returned together with the
// partially filled spectrum so callers can still report its flags.
func Ingest(raw *Raw, opts ...IngestOption) (*Spectrum, []Warning, error) {
	cfg := ingestConfig{irCutoff: DefaultIRCutoff, cutIR: true, negativeLimit: DefaultNegativeFluxFraction}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if raw == nil {
		return nil, nil, ErrMissingObservation
	}

	s := &Spectrum{
		ID:           raw.ID,
		TwoMassID:    raw.TwoMassID,
		Plate:        raw.Plate,
		WavelengthOK: raw.WavelengthOK,
		CrossTalkOK:  raw.CrossTalkOK,
		CCDs:         make(map[int]*CCD, NumCCDs),
	}
	var warnings []Warning
	warn := func(ccd int, format string, args ...any) {
		warnings = append(warnings, Warning{CCD: ccd, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(raw.SlitMask) == "IN" {
		s.Resolution = HighRes
		warn(0, "spectrum is high-resolution")
	}
	if !raw.WavelengthOK {
		warn(0, "wavelength solution not ok")
	}
	if !raw.CrossTalkOK {
		warn(0, "cross-talk not calculated reliably")
	}

	indices := make([]int, 0, len(raw.CCDs))
	for i := range raw.CCDs {
		indices = append(indices, i)
	}
	slices.Sort(indices)

	present := 0
	for _, i := range indices {
		rc := raw.CCDs[i]
		if rc == nil {
			continue
		}
		present++
		c, err := ingestCCD(i, rc)
		if err != nil {
			return nil, warnings, err
		}
		if n := clampUncertainty(c, rc.RelUnc); n > 0 {
			warn(i, "%d relative uncertainties <= 0, set to %.1f", n, fallbackRelativeUncertainty)
		}

		if len(c.LSF) == 1 {
			if cfg.fallback == nil {
				warn(i, "no line-spread function reported, CCD dropped")
				continue
			}
			lsfSigma, b, err := cfg.fallback.ClosestLSF(s.ID, s.Plate, i, s.Resolution)
			if err != nil || len(lsfSigma) != c.Len() {
				warn(i, "no replacement line-spread function: %v", err)
				continue
			}
			c.LSF, c.LSFB = lsfSigma, b
			warn(i, "line-spread function replaced from closest observation")
		}

		if i == IRCCD && cfg.cutIR {
			if !trimBelow(c, cfg.irCutoff) {
				warn(i, "no pixels above %.0f, CCD dropped", cfg.irCutoff)
				continue
			}
		}

		s.CCDs[i] = c
		s.Usable = append(s.Usable, i)
	}

	if present < NumCCDs {
		s.Flags.Set(FlagMissingCCDs)
	}

	more, err := s.Validate(cfg.negativeLimit)
	warnings = append(warnings, more...)
	if err != nil {
		return s, warnings, fmt.Errorf("observation %d: %w", s.ID, err)
	}
	return s, warnings, nil
}

func ingestCCD(index int, rc *RawCCD) (*CCD, error) {
	n := len(rc.Counts)
	if n == 0 || len(rc.RelUnc) != n {
		return nil, fmt.Errorf("%w: CCD%d has %d counts and %d uncertainties", ErrMalformed, index, n, len(rc.RelUnc))
	}
	if len(rc.LSF) != n && len(rc.LSF) != 1 {
		return nil, fmt.Errorf("%w: CCD%d has %d counts and %d LSF samples", ErrMalformed, index, n, len(rc.LSF))
	}
	return &CCD{
		Index:     index,
		Crval:     rc.Crval,
		Cdelt:     rc.Cdelt,
		Counts:    slices.Clone(rc.Counts),
		CountsUnc: make([]float64, n),
		LSF:       slices.Clone(rc.LSF),
		LSFB:      rc.LSFB,
	}, nil
}

// clampUncertainty fills CountsUnc from the relative uncertainty and
// returns how many values were replaced.
func clampUncertainty(c *CCD, rel []float64) int {
	n := 0
	for i, r := range rel {
		if !(r > 0) || math.IsInf(r, 0) {
			r = fallbackRelativeUncertainty
			n++
		}
		c.CountsUnc[i] = r * c.Counts[i]
	}
	return n
}

// trimBelow keeps the pixels redder than cutoff and reports whether any
// remain.
func trimBelow(c *CCD, cutoff float64) bool {
	first := -1
	for i := range c.Counts {
		if c.Crval+float64(i)*c.Cdelt > cutoff {
			first = i
			break
		}
	}
	if first < 0 {
		return false
	}
	c.Crval += float64(first) * c.Cdelt
	c.Counts = c.Counts[first:]
	c.CountsUnc = c.CountsUnc[first:]
	c.LSF = c.LSF[first:]
	return true
}

func negativeFlux(c *CCD, limit float64) (Warning, bool) {
	neg := 0
	for _, v := range c.Counts {
		if v < 0 {
			neg++
		}
	}
	frac := float64(neg) / float64(c.Len())
	if frac > limit {
		return Warning{CCD: c.Index, Message: fmt.Sprintf("%.1f%% of counts below 0, CCD dropped", 100*frac)}, true
	}
	return Warning{}, false
}

func negativeLSF(c *CCD) (Warning, bool) {
	for _, v := range c.LSF {
		if v < 0 {
			return Warning{CCD: c.Index, Message: "negative line-spread function, CCD dropped"}, true
		}
	}
	return Warning{}, false
}
