package observation

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-binspec/lsf"
)

// NumCCDs is the number of detector segments of the instrument.
const NumCCDs = 4

// CCD is one detector segment with a linear wavelength solution.
type CCD struct {
	Index     int
	Crval     float64 // wavelength of the first pixel
	Cdelt     float64 // wavelength step per pixel
	Counts    []float64
	CountsUnc []float64
	// LSF is the line-spread width per pixel in wavelength units.
	LSF []float64
	// LSFB is the shape exponent of the line-spread kernel.
	LSFB float64
}

// Len returns the number of pixels.
func (c *CCD) Len() int {
	return len(c.Counts)
}

// Wavelength returns crval + i*cdelt for every pixel.
func (c *CCD) Wavelength() []float64 {
	w := make([]float64, c.Len())
	for i := range w {
		w[i] = c.Crval + float64(i)*c.Cdelt
	}
	return w
}

// Profile returns the line-spread function sampled on the pixel grid.
func (c *CCD) Profile() lsf.Profile {
	return lsf.Profile{Wavelength: c.Wavelength(), Sigma: c.LSF}
}

// Spectrum is the ingested observation of one star.
type Spectrum struct {
	ID           int64
	TwoMassID    string
	Resolution   Resolution
	Plate        int
	WavelengthOK bool
	CrossTalkOK  bool

	// CCDs holds every CCD that was read, keyed by index.
	CCDs map[int]*CCD
	// Usable lists the indices that passed the quality checks, ascending.
	Usable []int
	Flags  Flag
}

// UsableCCDs returns the usable CCDs in index order.
func (s *Spectrum) UsableCCDs() []*CCD {
	out := make([]*CCD, 0, len(s.Usable))
	for _, i := range s.Usable {
		out = append(out, s.CCDs[i])
	}
	return out
}

// Wavelength concatenates the wavelengths of the usable CCDs.
func (s *Spectrum) Wavelength() []float64 {
	var w []float64
	for _, c := range s.UsableCCDs() {
		w = append(w, c.Wavelength()...)
	}
	return w
}

// Validate re-applies the negative flux and negative LSF checks to the
// usable set. Flags are raised at most once, so calling it repeatedly is
// harmless.
func (s *Spectrum) Validate(maxNegativeFraction float64) ([]Warning, error) {
	var warnings []Warning
	kept := s.Usable[:0:0]
	for _, i := range s.Usable {
		c := s.CCDs[i]
		if w, bad := negativeFlux(c, maxNegativeFraction); bad {
			s.Flags.Set(FlagNegativeFlux)
			warnings = append(warnings, w)
			continue
		}
		if w, bad := negativeLSF(c); bad {
			s.Flags.Set(FlagNegativeLSF)
			warnings = append(warnings, w)
			continue
		}
		kept = append(kept, i)
	}
	s.Usable = kept
	slices.Sort(s.Usable)
	if len(s.Usable) == 0 {
		return warnings, ErrNoUsableCCDs
	}
	return warnings, nil
}

// Warning is a recoverable quality issue found during ingestion.
type Warning struct {
	CCD     int // 0 for star-level warnings
	Message string
}

func (w Warning) String() string {
	if w.CCD == 0 {
		return w.Message
	}
	return fmt.Sprintf("CCD%d: %s", w.CCD, w.Message)
}
