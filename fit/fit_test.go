package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/internal/testutil"
	"github.com/cwbudde/algo-binspec/synth"
)

// linearModel is an Evaluator whose model is linear in the parameter vector.
type linearModel struct {
	layout *binary.Layout
	basis  [][]float64
	data   []float64
	nan    bool
}

func newLinearModel(layout *binary.Layout, truth binary.Params, pixels int) *linearModel {
	m := &linearModel{layout: layout}
	cols := make([][]float64, layout.Len())
	for k := range cols {
		cols[k] = testutil.DeterministicNoise(int64(k+1), 1, pixels)
	}
	for i := range pixels {
		row := make([]float64, layout.Len())
		for k := range row {
			row[k] = cols[k][i]
		}
		m.basis = append(m.basis, row)
	}
	m.data = m.model(layout.Pack(truth))
	return m
}

func (m *linearModel) model(x []float64) []float64 {
	out := make([]float64, len(m.basis))
	for i, row := range m.basis {
		for k, b := range row {
			out[i] += b * x[k]
		}
	}
	return out
}

func (m *linearModel) Evaluate(p binary.Params) (*binary.Evaluation, error) {
	model := m.model(m.layout.Pack(p))
	if m.nan {
		model[3] = math.NaN()
	}
	n := len(model)
	ev := &binary.Evaluation{
		Wave:     testutil.Ramp(5000, 0.1, n),
		RestWave: testutil.Ramp(5000, 0.1, n),
		Flux:     append([]float64(nil), m.data...),
		Sigma2:   testutil.DC(1e-4, n),
		Model:    model,
		Params:   p,
	}
	return ev, nil
}

func linearTruth() binary.Params {
	return binary.Params{
		FContr: 0.6, RV1: 3, RV2: -4,
		Comp1: synth.Labels{Teff: 5600, Logg: 4.1, FeH: -0.2, Vmic: 1.1, Vsini: 6},
		Comp2: synth.Labels{Teff: 4800, Logg: 4.6, FeH: -0.2, Vmic: 0.8, Vsini: 2},
	}
}

func allTrue(n int) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}

func TestFitLinearModel(t *testing.T) {
	layout := binary.NewLayout(true)
	truth := linearTruth()
	model := newLinearModel(layout, truth, 60)

	start := truth
	start.FContr = 0.5
	start.Comp1.Teff += 200
	start.Comp2.Vsini += 1

	res, err := Fit(model, layout, start, allTrue(60))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.State != Converged {
		t.Fatalf("state %v (%s)", res.State, res.Reason)
	}
	testutil.RequireSliceNearlyEqual(t, res.Vector, layout.Pack(truth), 1e-6)
	if res.Chi2 > 1e-6 || res.Evaluations <= res.Iterations {
		t.Fatalf("chi2 %v evaluations %d iterations %d", res.Chi2, res.Evaluations, res.Iterations)
	}
	if len(res.Uncertainty) != layout.Len() {
		t.Fatalf("uncertainty length %d", len(res.Uncertainty))
	}
}

func TestFitRespectsBounds(t *testing.T) {
	layout := binary.NewLayout(true)
	truth := linearTruth()
	truth.FContr = 1.3
	model := newLinearModel(layout, truth, 60)

	start := linearTruth()
	res, err := Fit(model, layout, start, allTrue(60))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Params.FContr > 1 || res.Params.FContr < 0 {
		t.Fatalf("f_contr %v escaped its bounds", res.Params.FContr)
	}
}

func TestFitLeavesUpperBound(t *testing.T) {
	layout := binary.NewLayout(true)
	truth := linearTruth()
	model := newLinearModel(layout, truth, 60)

	start := truth
	start.FContr = 1
	res, err := Fit(model, layout, start, allTrue(60))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.State != Converged {
		t.Fatalf("state %v (%s)", res.State, res.Reason)
	}
	testutil.RequireNearlyEqual(t, "f_contr", res.Params.FContr, truth.FContr, 1e-6)
	if res.Chi2 > 1e-6 {
		t.Fatalf("chi2 %v after leaving the bound", res.Chi2)
	}
}

func TestFitMaxIterations(t *testing.T) {
	layout := binary.NewLayout(false)
	truth := linearTruth()
	model := newLinearModel(layout, truth, 60)
	start := truth
	start.RV1 += 5

	res, err := Fit(model, layout, start, allTrue(60), WithMaxIterations(1))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.State != MaxIterations || res.Iterations != 1 {
		t.Fatalf("state %v after %d iterations", res.State, res.Iterations)
	}
}

func TestFitNumericDivergence(t *testing.T) {
	layout := binary.NewLayout(true)
	model := newLinearModel(layout, linearTruth(), 60)
	model.nan = true

	res, err := Fit(model, layout, linearTruth(), allTrue(60))
	if !errors.Is(err, ErrNumericDivergence) {
		t.Fatalf("expected ErrNumericDivergence, got %v", err)
	}
	if res == nil || res.State != Failed {
		t.Fatalf("result %+v", res)
	}
}

func TestFitMaskErrors(t *testing.T) {
	layout := binary.NewLayout(true)
	model := newLinearModel(layout, linearTruth(), 60)

	if _, err := Fit(model, layout, linearTruth(), allTrue(5)); !errors.Is(err, ErrMask) {
		t.Fatalf("expected ErrMask for short mask, got %v", err)
	}
	res, err := Fit(model, layout, linearTruth(), allTrue(40))
	if !errors.Is(err, ErrMask) || res.State != Failed {
		t.Fatalf("expected failed fit for mismatched mask, got %v", err)
	}
}

func TestFitEvents(t *testing.T) {
	layout := binary.NewLayout(true)
	truth := linearTruth()
	model := newLinearModel(layout, truth, 60)
	start := truth
	start.Comp2.Teff -= 300

	var events []Event
	res, err := Fit(model, layout, start, allTrue(60),
		WithObserver(func(e Event) { events = append(events, e) }),
		WithEventInterval(1))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Iteration != 0 || events[0].State != Iterating {
		t.Fatalf("first event %+v", events[0])
	}
	last := events[len(events)-1]
	if last.State != res.State || !last.State.Terminal() || last.Iteration != res.Iterations {
		t.Fatalf("last event state %v iteration %d", last.State, last.Iteration)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Cost > events[i-1].Cost {
			t.Fatalf("cost increased between events %d and %d", i-1, i)
		}
	}
}

func TestOutlierMask(t *testing.T) {
	ev := &binary.Evaluation{
		RestWave: []float64{6560, 6562, 6563, 6570, 6580},
		Flux:     []float64{1, 1, 1, 1.5, 1.1},
		Model:    []float64{1, 1, 1, 1, 1},
		Sigma2:   []float64{1e-4, 1e-4, 1e-4, 1e-4, 1e-4},
	}
	got := OutlierMask(ev, WithLineWindows(Window{Begin: 6561.5, End: 6563.5}))
	want := []bool{true, false, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mask = %v, want %v", got, want)
		}
	}
}

func TestAgreement(t *testing.T) {
	ev := &binary.Evaluation{Flux: []float64{1, 1, 1, 1}, Model: []float64{1, 0.9, 1.1, 1}}
	testutil.RequireNearlyEqual(t, "agreement", Agreement(ev), 5, 1e-12)
}
