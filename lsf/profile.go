package lsf

import (
	"fmt"
	"math"
)

// Profile is an instrumental line-spread function sampled on a CCD's pixel
// grid. Sigma is the Gaussian width in wavelength units at each pixel.
type Profile struct {
	Wavelength []float64
	Sigma      []float64
}

// NewProfile builds a profile on the linear pixel grid crval + i*cdelt.
func NewProfile(crval, cdelt float64, sigma []float64) Profile {
	wave := make([]float64, len(sigma))
	for i := range wave {
		wave[i] = crval + float64(i)*cdelt
	}
	return Profile{Wavelength: wave, Sigma: append([]float64(nil), sigma...)}
}

func (p Profile) validate() error {
	if len(p.Sigma) == 0 {
		return fmt.Errorf("%w: empty", ErrProfile)
	}
	if len(p.Sigma) != len(p.Wavelength) {
		return fmt.Errorf("%w: %d widths for %d wavelengths", ErrProfile, len(p.Sigma), len(p.Wavelength))
	}
	for i, s := range p.Sigma {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: width %v at pixel %d", ErrProfile, s, i)
		}
		if i > 0 && !(p.Wavelength[i] > p.Wavelength[i-1]) {
			return fmt.Errorf("%w: wavelengths not increasing at pixel %d", ErrProfile, i)
		}
	}
	return nil
}
