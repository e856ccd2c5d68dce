package fit_test

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/fit"
	"github.com/cwbudde/algo-binspec/internal/fixture"
)

// iterationBudget bounds the Levenberg-Marquardt iterations a start close to
// the truth may take on the noise-free fixture.
const iterationBudget = 30

func TestFitRecoversBinary(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end fit")
	}
	net := fixture.Network()
	truth := fixture.Truth()
	spec, err := fixture.Spectrum(net, truth)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	model, err := binary.NewModel(net, spec, binary.WithCCDWindows(fixture.Windows()))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	start := truth
	start.FContr = 0.55
	start.RV1 += 0.5
	start.RV2 -= 0.5
	start.Comp1.Teff += 100
	start.Comp2.Teff -= 100
	start.Comp1.Logg -= 0.1
	start.Comp2.Vsini += 0.5
	start.Comp1.FeH += 0.05

	initial, err := model.Evaluate(start)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	mask := fit.OutlierMask(initial)

	res, err := fit.Fit(model, model.Layout(), start, mask,
		fit.WithXTol(1e-10), fit.WithFTol(1e-12), fit.WithMaxIterations(iterationBudget))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.State != fit.Converged || res.Iterations > iterationBudget {
		t.Fatalf("state %v (%s) after %d iterations", res.State, res.Reason, res.Iterations)
	}
	got := res.Params
	checks := []struct {
		name      string
		got, want float64
		tol       float64
	}{
		{"f_contr", got.FContr, truth.FContr, 0.01},
		{"rv_1", got.RV1, truth.RV1, 0.05},
		{"rv_2", got.RV2, truth.RV2, 0.05},
		{"teff_1", got.Comp1.Teff, truth.Comp1.Teff, 1},
		{"teff_2", got.Comp2.Teff, truth.Comp2.Teff, 1},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > c.tol {
			t.Errorf("%s = %v, want %v ± %v", c.name, c.got, c.want, c.tol)
		}
	}
	if res.Agreement > 0.01 {
		t.Errorf("agreement %v%%", res.Agreement)
	}
}
