package lsf

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

const (
	// fwhmPerSigma converts a Gaussian FWHM to its standard deviation.
	fwhmPerSigma = 2.355
	ln2          = 0.693147
	minHalfSize  = 7
)

// Kernel returns the generalised Gaussian broadening kernel
// exp(-ln2 * |2x/width|^b) sampled at integer offsets and normalised to unit
// sum. width is the full width at half maximum in samples; b = 2 gives a
// Gaussian. The half size is int(2*(width/2.355)^2) samples, at least 7.
func Kernel(width, b float64) ([]float64, error) {
	if !(width > 0) || !(b > 0) || math.IsInf(width, 0) || math.IsInf(b, 0) {
		return nil, fmt.Errorf("%w: width %v, shape %v", ErrKernel, width, b)
	}
	s := width / fwhmPerSigma
	half := max(int(2*s*s), minHalfSize)

	k := make([]float64, 2*half+1)
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-ln2 * math.Pow(math.Abs(2*x/width), b))
	}
	vecmath.ScaleBlockInPlace(k, 1/vecmath.Sum(k))
	return k, nil
}
