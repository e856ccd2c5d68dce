package testutil

import "testing"

func TestDeterministicNoise(t *testing.T) {
	a := DeterministicNoise(42, 0.5, 64)
	b := DeterministicNoise(42, 0.5, 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise not deterministic at index %d", i)
		}
		if a[i] < -0.5 || a[i] >= 0.5 {
			t.Fatalf("noise[%d] = %v outside amplitude", i, a[i])
		}
	}
}

func TestImpulse(t *testing.T) {
	imp := Impulse(8, 3)
	for i, v := range imp {
		want := 0.0
		if i == 3 {
			want = 1
		}
		if v != want {
			t.Fatalf("imp[%d] = %v, want %v", i, v, want)
		}
	}
	for _, v := range Impulse(4, 10) {
		if v != 0 {
			t.Fatal("out-of-range impulse must be all zeros")
		}
	}
}

func TestRamp(t *testing.T) {
	r := Ramp(5000, 0.01, 4)
	want := []float64{5000, 5000.01, 5000.02, 5000.03}
	RequireSliceNearlyEqual(t, r, want, 1e-9)
}
