package continuum

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrLengthMismatch is returned when input arrays differ in length.
	ErrLengthMismatch = errors.New("continuum: length mismatch")
	// ErrEmptyInput is returned for empty input.
	ErrEmptyInput = errors.New("continuum: empty input")
)

// Result is the outcome of Normalize.
type Result struct {
	// Fit is the final curve evaluated at every input point.
	Fit []float64
	// History holds the curve in effect at the start of each iteration.
	History [][]float64
	// Mask marks the points that survived clipping. It is not combined
	// with the initial mask.
	Mask []bool
	// Iterations counts the refits after the initial fit.
	Iterations int
	InitialStd float64
	FinalStd   float64
	// Rejected is the number of false entries in Mask.
	Rejected int
}

// Normalize fits y(x) with iterative outlier rejection. ye holds per-point
// uncertainties added to the scatter in sigma mode; nil means zero. The
// inputs are not modified.
func Normalize(x, y, ye []float64, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	if err := cfg.rejection.validate(); err != nil {
		return nil, err
	}

	n := len(x)
	if n == 0 {
		return nil, ErrEmptyInput
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d x, %d y", ErrLengthMismatch, n, len(y))
	}
	if ye == nil {
		ye = make([]float64, n)
	} else if len(ye) != n {
		return nil, fmt.Errorf("%w: %d x, %d uncertainties", ErrLengthMismatch, n, len(ye))
	}

	initial := cfg.initialMask
	if initial == nil {
		initial = filled(n, true)
	} else if len(initial) != n {
		return nil, fmt.Errorf("%w: %d x, initial mask %d", ErrLengthMismatch, n, len(initial))
	}

	f, err := cfg.fit(x, y, ye, initial)
	if err != nil {
		return nil, fmt.Errorf("continuum: initial fit: %w", err)
	}
	s := residualStd(y, f, nil)

	res := &Result{InitialStd: s}
	old := filled(n, true)
	mask := make([]bool, n)
	combined := make([]bool, n)

	for range cfg.iterations {
		cfg.rejection.keep(mask, y, f, ye, s)
		if cfg.grow > 0 {
			mask = grow(mask, cfg.grow)
		}
		res.History = append(res.History, f)

		if count(mask) < cfg.minPoints || slices.Equal(mask, old) {
			break
		}

		for i := range combined {
			combined[i] = mask[i] && initial[i]
		}
		f, err = cfg.fit(x, y, ye, combined)
		if err != nil {
			return nil, fmt.Errorf("continuum: iteration %d: %w", res.Iterations+1, err)
		}
		s = residualStd(y, f, mask)
		res.Iterations++
		old, mask = mask, old
	}

	res.Fit = f
	res.Mask = old
	res.FinalStd = s
	res.Rejected = n - count(old)
	return res, nil
}

// residualStd is the population standard deviation of y-f over mask.
func residualStd(y, f []float64, mask []bool) float64 {
	r := make([]float64, 0, len(y))
	for i := range y {
		if mask == nil || mask[i] {
			r = append(r, y[i]-f[i])
		}
	}
	return stat.PopStdDev(r, nil)
}

func grow(mask []bool, radius int) []bool {
	out := filled(len(mask), true)
	for i, ok := range mask {
		if ok {
			continue
		}
		for j := max(0, i-radius); j <= min(len(mask)-1, i+radius); j++ {
			out[j] = false
		}
	}
	return out
}

func filled(n int, v bool) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = v
	}
	return m
}

func count(mask []bool) int {
	c := 0
	for _, ok := range mask {
		if ok {
			c++
		}
	}
	return c
}
