package biquad

import (
	"math"
	"testing"
)

const eps = 1e-12

func TestProcessSampleHandTraced(t *testing.T) {
	// B0=0.25, B1=0.5, B2=0.25, A1=-0.2, A2=0.04 driven by an impulse:
	//
	// n=0: y=0.25         d0=0.55     d1=0.24
	// n=1: y=0.55         d0=0.35     d1=-0.022
	// n=2: y=0.35         d0=0.048    d1=-0.014
	// n=3: y=0.048
	s := NewSection(Coefficients{B0: 0.25, B1: 0.5, B2: 0.25, A1: -0.2, A2: 0.04})

	want := []float64{0.25, 0.55, 0.35, 0.048}
	for i, w := range want {
		x := 0.0
		if i == 0 {
			x = 1
		}

		if y := s.ProcessSample(x); math.Abs(y-w) > eps {
			t.Fatalf("n=%d: got %v want %v", i, y, w)
		}
	}
}

func TestProcessBlockMatchesSample(t *testing.T) {
	c := Design(Peaking, 1000, 0.5, 6, 48000)
	a := NewSection(c)
	b := NewSection(c)

	buf := make([]float64, 257)
	for i := range buf {
		buf[i] = math.Sin(float64(i) * 0.1)
	}

	want := make([]float64, len(buf))
	for i, x := range buf {
		want[i] = a.ProcessSample(x)
	}

	b.ProcessBlock(buf)

	for i := range buf {
		if math.Abs(buf[i]-want[i]) > 1e-12 {
			t.Fatalf("index %d: got %v want %v", i, buf[i], want[i])
		}
	}
}

func TestSetCoefficientsKeepsState(t *testing.T) {
	s := NewSection(Design(Lowpass, 500, DefaultQ, 0, 48000))
	s.ProcessSample(1)

	before := s.State()
	s.SetCoefficients(Design(Lowpass, 800, DefaultQ, 0, 48000))

	if s.State() != before {
		t.Fatalf("state changed on coefficient swap: got %v want %v", s.State(), before)
	}
}

func TestReset(t *testing.T) {
	s := NewSection(Coefficients{B0: 0.5, B1: 0.5, A1: -0.5})
	s.ProcessSample(1)
	s.ProcessSample(1)
	s.Reset()

	if s.State() != [2]float64{} {
		t.Fatalf("state after Reset: got %v want zeros", s.State())
	}
}
