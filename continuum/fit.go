package continuum

import (
	"github.com/cwbudde/algo-binspec/internal/poly"
)

// FitFunc fits y(x) over the points selected by mask and returns the fitted
// curve evaluated at every x.
type FitFunc func(x, y, ye []float64, mask []bool) ([]float64, error)

// DefaultDegree is the degree of the default Chebyshev continuum.
const DefaultDegree = 4

// Chebyshev returns a FitFunc fitting a Chebyshev series of degree deg by
// unweighted least squares.
func Chebyshev(deg int) FitFunc {
	return func(x, y, _ []float64, mask []bool) ([]float64, error) {
		p, err := poly.Fit(x, y, deg, poly.Chebyshev, mask)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(x))
		p.EvalTo(out, x)
		return out, nil
	}
}
