package biquad

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

const sr = 48000.0

func db(x float64) float64 { return core.LinearToDB(x) }

func TestDesignPassBands(t *testing.T) {
	tests := []struct {
		name   string
		typ    Type
		freq   float64
		atHz   float64
		wantDB float64
		tol    float64
	}{
		{name: "lowpass passes DC", typ: Lowpass, freq: 1000, atHz: 20, wantDB: 0, tol: 0.05},
		{name: "lowpass -3dB at cutoff", typ: Lowpass, freq: 1000, atHz: 1000, wantDB: -3.01, tol: 0.05},
		{name: "lowpass stops highs", typ: Lowpass, freq: 100, atHz: 10000, wantDB: -80, tol: 10},
		{name: "highpass passes highs", typ: Highpass, freq: 1000, atHz: 15000, wantDB: 0, tol: 0.1},
		{name: "highpass -3dB at cutoff", typ: Highpass, freq: 1000, atHz: 1000, wantDB: -3.01, tol: 0.05},
		{name: "allpass is flat", typ: Allpass, freq: 1000, atHz: 3000, wantDB: 0, tol: 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Design(tt.typ, tt.freq, DefaultQ, 0, sr)
			got := db(c.MagnitudeAt(tt.atHz, sr))
			if math.Abs(got-tt.wantDB) > tt.tol {
				t.Fatalf("%s: got %.3f dB want %.3f dB", tt.typ, got, tt.wantDB)
			}
		})
	}
}

func TestDesignShelvesAndPeak(t *testing.T) {
	low := Design(LowShelf, 320, 0, 12, sr)
	if got := db(low.MagnitudeAt(20, sr)); math.Abs(got-12) > 0.3 {
		t.Fatalf("lowshelf DC gain: got %.3f want 12", got)
	}
	if got := db(low.MagnitudeAt(18000, sr)); math.Abs(got) > 0.3 {
		t.Fatalf("lowshelf HF gain: got %.3f want 0", got)
	}

	high := Design(HighShelf, 3200, 0, -12, sr)
	if got := db(high.MagnitudeAt(20000, sr)); math.Abs(got+12) > 0.5 {
		t.Fatalf("highshelf HF gain: got %.3f want -12", got)
	}

	peak := Design(Peaking, 1000, 0.5, 6, sr)
	if got := db(peak.MagnitudeAt(1000, sr)); math.Abs(got-6) > 1e-6 {
		t.Fatalf("peak center gain: got %.6f want 6", got)
	}
}

func TestDesignZeroGainIsTransparent(t *testing.T) {
	for _, typ := range []Type{LowShelf, HighShelf, Peaking} {
		c := Design(typ, 1000, 0.5, 0, sr)
		for _, f := range []float64{30, 1000, 12000} {
			if got := c.MagnitudeAt(f, sr); math.Abs(got-1) > 1e-9 {
				t.Fatalf("%s at %v Hz: got %v want 1", typ, f, got)
			}
		}
	}
}

func TestDesignInvalidInput(t *testing.T) {
	if got := Design(Lowpass, 0, DefaultQ, 0, sr); got != Identity() {
		t.Fatalf("zero frequency: got %+v want identity", got)
	}
	if got := Design(Lowpass, 1000, DefaultQ, 0, 0); got != Identity() {
		t.Fatalf("zero sample rate: got %+v want identity", got)
	}

	// Above Nyquist is clamped, not rejected.
	c := Design(Lowpass, 30000, DefaultQ, 0, sr)
	if c == Identity() {
		t.Fatal("above-Nyquist lowpass should be clamped, not identity")
	}
}
