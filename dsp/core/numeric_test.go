package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min      float64
		max      float64
		expected float64
	}{
		{name: "inside", value: 0.5, min: 0, max: 1, expected: 0.5},
		{name: "below", value: -1, min: 0, max: 1, expected: 0},
		{name: "above", value: 2, min: 0, max: 1, expected: 1},
		{name: "swapped", value: 2, min: 1, max: 0, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.value, tt.min, tt.max)
			if got != tt.expected {
				t.Fatalf("Clamp() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNearlyEqual(t *testing.T) {
	if !NearlyEqual(1.0, 1.0+1e-13, 1e-12) {
		t.Fatal("expected values to be nearly equal")
	}
	if NearlyEqual(1.0, 1.1, 1e-3) {
		t.Fatal("expected values to differ")
	}
}

func TestDBConversions(t *testing.T) {
	linear := DBToLinear(-6)
	db := LinearToDB(linear)
	if !NearlyEqual(db, -6, 1e-10) {
		t.Fatalf("LinearToDB(DBToLinear(-6)) = %v, want -6", db)
	}
	if !math.IsInf(LinearToDB(0), -1) {
		t.Fatal("expected -Inf for zero")
	}
	if !math.IsNaN(LinearToDB(-1)) {
		t.Fatal("expected NaN for negative amplitude")
	}
}

func TestSmoothingCoeffReachesTimeConstant(t *testing.T) {
	const sr = 48000.0
	const tc = 0.010

	c := SmoothingCoeff(tc, sr)
	y := 0.0
	for range int(tc * sr) {
		y += c * (1 - y)
	}

	// One time constant covers 1 - 1/e of the distance.
	want := 1 - math.Exp(-1)
	if math.Abs(y-want) > 1e-3 {
		t.Fatalf("after one time constant: got %v want %v", y, want)
	}

	if got := SmoothingCoeff(0, sr); got != 1 {
		t.Fatalf("zero time constant: got %v want 1", got)
	}
}

func TestLogLerp(t *testing.T) {
	if got := LogLerp(20, 20000, 0); got != 20 {
		t.Fatalf("t=0: got %v want 20", got)
	}
	if got := LogLerp(20, 20000, 1); math.Abs(got-20000) > 1e-9 {
		t.Fatalf("t=1: got %v want 20000", got)
	}
	// Geometric mean halfway.
	if got := LogLerp(100, 10000, 0.5); math.Abs(got-1000) > 1e-9 {
		t.Fatalf("t=0.5: got %v want 1000", got)
	}
}
