package binary_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/algo-binspec/binary"
	"github.com/cwbudde/algo-binspec/internal/fixture"
	"github.com/cwbudde/algo-binspec/internal/testutil"
	"github.com/cwbudde/algo-binspec/observation"
	"github.com/cwbudde/algo-binspec/synth"
)

func newFixtureModel(t *testing.T) (*binary.Model, *synth.Network) {
	t.Helper()
	net := fixture.Network()
	spec, err := fixture.Spectrum(net, fixture.Truth())
	if err != nil {
		t.Fatalf("fixture spectrum: %v", err)
	}
	m, err := binary.NewModel(net, spec, binary.WithCCDWindows(fixture.Windows()))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m, net
}

func TestEvaluateAtTruthReproducesObservation(t *testing.T) {
	m, _ := newFixtureModel(t)
	ev, err := m.Evaluate(fixture.Truth())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(ev.Wave) != fixture.CCDPixels || len(ev.Flux) != fixture.CCDPixels {
		t.Fatalf("evaluation has %d/%d pixels", len(ev.Wave), len(ev.Flux))
	}
	testutil.RequireSliceNearlyEqual(t, ev.Flux, ev.Model, 1e-9)
	for i, s2 := range ev.Sigma2 {
		want := fixture.RelativeUncertainty * ev.Model[i]
		testutil.RequireNearlyEqual(t, "sigma", math.Sqrt(s2), want, 1e-9)
	}
	if len(ev.CCDBounds) != 1 || ev.CCDBounds[0].End != fixture.CCDPixels {
		t.Fatalf("CCD bounds = %+v", ev.CCDBounds)
	}
	testutil.RequireNearlyEqual(t, "rest frame", ev.RestWave[0], fixture.CCDCrval/(1+10/binary.SpeedOfLight), 1e-9)
}

func TestEvaluateDegeneracy(t *testing.T) {
	m, _ := newFixtureModel(t)

	p := fixture.Truth()
	p.FContr = 1
	ev, err := m.Evaluate(p)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, ev.Model, ev.Component1, 1e-12)

	p.FContr = 0
	ev, err = m.Evaluate(p)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, ev.Model, ev.Component2, 1e-12)
}

func TestEvaluateShiftsComponents(t *testing.T) {
	m, _ := newFixtureModel(t)
	ev, err := m.Evaluate(fixture.Truth())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	centre := fixture.LineCentres()[0]
	for _, c := range []struct {
		flux []float64
		rv   float64
	}{{ev.Component1, 10}, {ev.Component2, -15}} {
		best, at := math.Inf(1), 0.0
		for i, w := range ev.Wave {
			if w < centre-0.4 || w > centre+0.4 {
				continue
			}
			if c.flux[i] < best {
				best, at = c.flux[i], w
			}
		}
		want := centre * (1 + c.rv/binary.SpeedOfLight)
		if math.Abs(at-want) > fixture.CCDCdelt {
			t.Fatalf("line minimum for rv %v at %.3f, want %.3f", c.rv, at, want)
		}
		if !(best < 0.95) {
			t.Fatalf("line depth for rv %v too shallow: %v", c.rv, best)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	m, _ := newFixtureModel(t)

	p := fixture.Truth()
	p.FContr = -0.1
	if _, err := m.Evaluate(p); !errors.Is(err, binary.ErrFContrRange) {
		t.Fatalf("expected ErrFContrRange, got %v", err)
	}

	p = fixture.Truth()
	p.Comp2.Logg = math.NaN()
	if _, err := m.Evaluate(p); !errors.Is(err, synth.ErrMissingLabel) {
		t.Fatalf("expected ErrMissingLabel, got %v", err)
	}
}

func TestNewModelDefaultWindowIsEmpty(t *testing.T) {
	net := fixture.Network()
	spec, _, err := observation.Ingest(fixture.Raw(1))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := binary.NewModel(net, spec); !errors.Is(err, binary.ErrEmptyWindow) {
		t.Fatalf("expected ErrEmptyWindow, got %v", err)
	}
}

func TestNewModelBuildsGridOnce(t *testing.T) {
	m, net := newFixtureModel(t)
	grids := m.Grids()
	g, ok := grids[fixture.CCDIndex]
	if !ok {
		t.Fatalf("no grid for CCD%d", fixture.CCDIndex)
	}
	if g.Wavelength[0] != net.Wavelength()[0] {
		t.Fatalf("grid starts at %v", g.Wavelength[0])
	}
	if _, err := m.Evaluate(fixture.Truth()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Grids()[fixture.CCDIndex] != g {
		t.Fatal("grid rebuilt between evaluations")
	}
}

func TestEvaluateTimeBudget(t *testing.T) {
	m, _ := newFixtureModel(t)
	if _, err := m.Evaluate(fixture.Truth()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	const runs = 20
	start := time.Now()
	for range runs {
		if _, err := m.Evaluate(fixture.Truth()); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
	}
	if per := time.Since(start) / runs; per > 250*time.Millisecond {
		t.Fatalf("one Evaluate on a %d-point grid took %v", m.Grids()[fixture.CCDIndex].Len(), per)
	}
}
