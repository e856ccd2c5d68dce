package poly

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-binspec/internal/testutil"
)

func TestFitRecoversPolynomial(t *testing.T) {
	x := testutil.Ramp(4800, 0.5, 400)
	y := make([]float64, len(x))
	for i, xi := range x {
		u := (xi - 4900) / 100
		y[i] = 0.12 + 0.03*u - 0.02*u*u*u + 0.001*math.Pow(u, 6)
	}

	for _, basis := range []Basis{Power, Chebyshev} {
		p, err := Fit(x, y, 6, basis, nil)
		if err != nil {
			t.Fatalf("basis %d: %v", basis, err)
		}
		got := make([]float64, len(x))
		p.EvalTo(got, x)
		testutil.RequireSliceNearlyEqual(t, got, y, 1e-9)
	}
}

func TestFitRespectsMask(t *testing.T) {
	x := testutil.Ramp(0, 1, 20)
	y := make([]float64, len(x))
	mask := make([]bool, len(x))
	for i := range x {
		y[i] = 2 + 0.5*x[i]
		mask[i] = true
	}
	y[7] = 100
	mask[7] = false

	p, err := Fit(x, y, 1, Chebyshev, mask)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	testutil.RequireNearlyEqual(t, "masked point", p.Eval(7), 5.5, 1e-10)
}

func TestFitUnderdetermined(t *testing.T) {
	_, err := Fit([]float64{1, 2, 3}, []float64{1, 2, 3}, 4, Power, nil)
	if !errors.Is(err, ErrUnderdetermined) {
		t.Fatalf("expected ErrUnderdetermined, got %v", err)
	}
}

func TestClenshawMatchesDefinition(t *testing.T) {
	c := []float64{0.5, -1, 2, 0.25}
	for _, tt := range []float64{-1, -0.3, 0, 0.7, 1} {
		want := c[0] + c[1]*tt + c[2]*(2*tt*tt-1) + c[3]*(4*tt*tt*tt-3*tt)
		testutil.RequireNearlyEqual(t, "clenshaw", clenshaw(c, tt), want, 1e-14)
	}
}
