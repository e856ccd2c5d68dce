package continuum

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrConflictingRejection is returned when both sigma and count bounds
	// are requested.
	ErrConflictingRejection = errors.New("continuum: sigma bounds and count bounds are mutually exclusive")
	// ErrNoRejection is returned when neither rejection rule is given.
	ErrNoRejection = errors.New("continuum: no rejection rule")
	// ErrInvalidRejection is returned for negative or absent thresholds.
	ErrInvalidRejection = errors.New("continuum: invalid rejection thresholds")
)

// Rejection decides which points survive one clipping iteration.
// It is implemented by SigmaClip and CountClip only.
type Rejection interface {
	keep(dst []bool, y, f, ye []float64, s float64)
	validate() error
}

// SigmaClip keeps points whose residual lies within the bounds measured in
// units of scatter plus uncertainty. Lower bounds points below the fit,
// Upper points above it. A zero bound takes the value of the other.
type SigmaClip struct {
	Lower float64
	Upper float64
}

func (c SigmaClip) bounds() (lower, upper float64) {
	lower, upper = c.Lower, c.Upper
	if lower == 0 {
		lower = upper
	}
	if upper == 0 {
		upper = lower
	}
	return lower, upper
}

func (c SigmaClip) validate() error {
	lower, upper := c.bounds()
	if !(lower > 0) || !(upper > 0) {
		return fmt.Errorf("%w: sigma bounds %v/%v", ErrInvalidRejection, c.Lower, c.Upper)
	}
	return nil
}

func (c SigmaClip) keep(dst []bool, y, f, ye []float64, s float64) {
	lower, upper := c.bounds()
	for i := range dst {
		d := f[i] - y[i]
		tol := s + ye[i]
		dst[i] = d < lower*tol && d > -upper*tol
	}
}

// CountClip rejects the Below most negative and the Above most positive
// residuals. Values below 1 are fractions of the number of points.
type CountClip struct {
	Below float64
	Above float64
}

func (c CountClip) validate() error {
	if c.Below < 0 || c.Above < 0 || (c.Below == 0 && c.Above == 0) {
		return fmt.Errorf("%w: counts %v/%v", ErrInvalidRejection, c.Below, c.Above)
	}
	return nil
}

func (c CountClip) keep(dst []bool, y, f, _ []float64, _ float64) {
	n := len(dst)
	below := countOf(c.Below, n)
	above := countOf(c.Above, n)

	order := make([]int, n)
	for i := range order {
		order[i] = i
		dst[i] = true
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(y[a]-f[a], y[b]-f[b])
	})
	for _, i := range order[:below] {
		dst[i] = false
	}
	for _, i := range order[n-above:] {
		dst[i] = false
	}
}

func countOf(v float64, n int) int {
	if v < 1 {
		v *= float64(n)
	}
	return min(int(v), n)
}

// NewRejection returns the rule described by exactly one of sigma and count.
func NewRejection(sigma *SigmaClip, count *CountClip) (Rejection, error) {
	switch {
	case sigma != nil && count != nil:
		return nil, ErrConflictingRejection
	case sigma != nil:
		if err := sigma.validate(); err != nil {
			return nil, err
		}
		return *sigma, nil
	case count != nil:
		if err := count.validate(); err != nil {
			return nil, err
		}
		return *count, nil
	default:
		return nil, ErrNoRejection
	}
}
