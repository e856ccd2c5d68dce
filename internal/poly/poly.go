// Package poly fits and evaluates low-degree polynomials by linear least
// squares. Abscissae are mapped onto [-1, 1] before fitting, which keeps the
// design matrix well conditioned for wavelength-valued coordinates.
package poly

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnderdetermined is returned when fewer points than coefficients
	// are available.
	ErrUnderdetermined = errors.New("poly: not enough points for requested degree")
	// ErrLengthMismatch is returned when x, y and mask differ in length.
	ErrLengthMismatch = errors.New("poly: length mismatch")
	// ErrDegree is returned for a negative degree.
	ErrDegree = errors.New("poly: invalid degree")
)

// Basis selects the polynomial basis.
type Basis int

const (
	// Power is the monomial basis 1, t, t^2, ...
	Power Basis = iota
	// Chebyshev is the Chebyshev basis of the first kind T0, T1, ...
	Chebyshev
)

// Polynomial is a fitted polynomial in the mapped variable
// t = (x - center) / halfWidth.
type Polynomial struct {
	Coeffs    []float64
	Basis     Basis
	center    float64
	halfWidth float64
}

// Fit returns the least-squares polynomial of degree deg through the points
// selected by mask (all points if mask is nil).
func Fit(x, y []float64, deg int, basis Basis, mask []bool) (*Polynomial, error) {
	if deg < 0 {
		return nil, fmt.Errorf("%w: %d", ErrDegree, deg)
	}
	if len(x) != len(y) || (mask != nil && len(mask) != len(x)) {
		return nil, ErrLengthMismatch
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	n := 0
	for i, xi := range x {
		if mask != nil && !mask[i] {
			continue
		}
		n++
		lo = math.Min(lo, xi)
		hi = math.Max(hi, xi)
	}
	ncoef := deg + 1
	if n < ncoef {
		return nil, fmt.Errorf("%w: %d points, %d coefficients", ErrUnderdetermined, n, ncoef)
	}

	p := &Polynomial{Basis: basis, center: 0.5 * (lo + hi), halfWidth: 0.5 * (hi - lo)}
	if p.halfWidth == 0 {
		p.halfWidth = 1
	}

	a := mat.NewDense(n, ncoef, nil)
	b := mat.NewVecDense(n, nil)
	row := 0
	for i, xi := range x {
		if mask != nil && !mask[i] {
			continue
		}
		p.basisRow(a.RawRowView(row), p.mapped(xi))
		b.SetVec(row, y[i])
		row++
	}

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("poly: least squares: %w", err)
		}
	}
	p.Coeffs = mat.Col(nil, 0, &c)
	return p, nil
}

// Degree returns the polynomial degree.
func (p *Polynomial) Degree() int {
	return len(p.Coeffs) - 1
}

// Eval evaluates the polynomial at x.
func (p *Polynomial) Eval(x float64) float64 {
	t := p.mapped(x)
	switch p.Basis {
	case Chebyshev:
		return clenshaw(p.Coeffs, t)
	default:
		return horner(p.Coeffs, t)
	}
}

// EvalTo evaluates the polynomial at every x into dst.
func (p *Polynomial) EvalTo(dst, x []float64) {
	for i, xi := range x {
		dst[i] = p.Eval(xi)
	}
}

func (p *Polynomial) mapped(x float64) float64 {
	return (x - p.center) / p.halfWidth
}

func (p *Polynomial) basisRow(row []float64, t float64) {
	row[0] = 1
	if len(row) == 1 {
		return
	}
	row[1] = t
	for k := 2; k < len(row); k++ {
		if p.Basis == Chebyshev {
			row[k] = 2*t*row[k-1] - row[k-2]
		} else {
			row[k] = t * row[k-1]
		}
	}
}

func horner(c []float64, t float64) float64 {
	v := 0.0
	for k := len(c) - 1; k >= 0; k-- {
		v = v*t + c[k]
	}
	return v
}

// clenshaw evaluates a Chebyshev series.
func clenshaw(c []float64, t float64) float64 {
	var b1, b2 float64
	for k := len(c) - 1; k >= 1; k-- {
		b1, b2 = 2*t*b1-b2+c[k], b1
	}
	return t*b1 - b2 + c[0]
}
