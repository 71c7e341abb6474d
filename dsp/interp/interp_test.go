package interp

import "testing"

func TestHermite4IdentityOnLinearRamp(t *testing.T) {
	xm1, x0, x1, x2 := -1.0, 0.0, 1.0, 2.0
	for _, tc := range []struct {
		t float64
		w float64
	}{
		{t: 0.0, w: 0.0},
		{t: 0.25, w: 0.25},
		{t: 0.5, w: 0.5},
		{t: 1.0, w: 1.0},
	} {
		got := Hermite4(tc.t, xm1, x0, x1, x2)
		if diff := got - tc.w; diff < -1e-12 || diff > 1e-12 {
			t.Fatalf("t=%v: got %v want %v", tc.t, got, tc.w)
		}
	}
}

func TestAt(t *testing.T) {
	samples := []float32{0, 2, 4, 6}

	if got := At(Linear, samples, 1.5); got != 3 {
		t.Fatalf("linear 1.5: got %v want 3", got)
	}
	if got := At(Linear, samples, 3.5); got != 3 {
		t.Fatalf("linear past end: got %v want 3 (fades toward zero)", got)
	}
	if got := At(Linear, samples, -1); got != 0 {
		t.Fatalf("negative index: got %v want 0", got)
	}
	if got := At(Hermite, samples, 2); got != 4 {
		t.Fatalf("hermite on-grid: got %v want 4", got)
	}
}
