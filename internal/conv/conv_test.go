package conv

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-binspec/internal/testutil"
)

func TestDirect(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected []float64
	}{
		{
			name:     "box",
			a:        []float64{1, 2, 3},
			b:        []float64{1, 1, 1},
			expected: []float64{1, 3, 6, 5, 3},
		},
		{
			name:     "impulse",
			a:        []float64{1, 2, 3, 4, 5},
			b:        []float64{1},
			expected: []float64{1, 2, 3, 4, 5},
		},
		{
			name:     "symmetric",
			a:        []float64{1, 2, 1},
			b:        []float64{1, 2, 1},
			expected: []float64{1, 4, 6, 4, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Direct(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.RequireSliceNearlyEqual(t, got, tt.expected, 1e-12)
		})
	}
}

func TestDirectErrors(t *testing.T) {
	if _, err := Direct(nil, []float64{1}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Direct([]float64{1}, nil); !errors.Is(err, ErrEmptyKernel) {
		t.Errorf("expected ErrEmptyKernel, got %v", err)
	}
}

func TestSameCentresSymmetricKernel(t *testing.T) {
	signal := testutil.Impulse(21, 10)
	kernel := []float64{0.25, 0.5, 0.25}

	got, err := Same(signal, kernel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(signal) {
		t.Fatalf("length = %d, want %d", len(got), len(signal))
	}
	if got[9] != 0.25 || got[10] != 0.5 || got[11] != 0.25 {
		t.Fatalf("kernel not centred: %v", got[8:13])
	}
}

func TestOverlapAddMatchesDirect(t *testing.T) {
	signal := make([]float64, 3000)
	for i := range signal {
		signal[i] = 1 + 0.3*math.Sin(2*math.Pi*float64(i)/170)
	}
	kernel := make([]float64, 301)
	sum := 0.0
	for i := range kernel {
		x := float64(i-150) / 40
		kernel[i] = math.Exp(-0.5 * x * x)
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	want, err := Direct(signal, kernel)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}

	oa, err := NewOverlapAdd(kernel, 0)
	if err != nil {
		t.Fatalf("NewOverlapAdd: %v", err)
	}
	for pass := 0; pass < 2; pass++ {
		got, err := oa.Process(signal)
		if err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		testutil.RequireSliceNearlyEqual(t, got, want, 1e-9)
	}

	same, err := Same(signal, kernel)
	if err != nil {
		t.Fatalf("Same: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, same, want[150:150+len(signal)], 1e-9)
}

func TestProcessSameToLengthMismatch(t *testing.T) {
	oa, err := NewOverlapAdd([]float64{1, 2, 1}, 0)
	if err != nil {
		t.Fatalf("NewOverlapAdd: %v", err)
	}
	err = oa.ProcessSameTo(make([]float64, 3), make([]float64, 4))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}
