package effects

import (
	"math"
	"testing"
)

func TestEchoClamps(t *testing.T) {
	if got := ClampFeedback(5); got != 0.9 {
		t.Fatalf("ClampFeedback(5): got %v want 0.9", got)
	}
	if got := ClampFeedback(-1); got != 0 {
		t.Fatalf("ClampFeedback(-1): got %v want 0", got)
	}
	if got := ClampTime(10); got != 2 {
		t.Fatalf("ClampTime(10): got %v want 2", got)
	}
}

func TestEchoRepeats(t *testing.T) {
	const sr = 1000.0

	e, err := NewEcho(sr)
	if err != nil {
		t.Fatal(err)
	}

	out := make([]float64, 400)
	for i := range out {
		x := 0.0
		if i == 0 {
			x = 1
		}

		out[i], _ = e.ProcessStereo(x, x, 0.1, 0.5)
	}

	for i, want := range map[int]float64{100: 1, 200: 0.5, 300: 0.25} {
		if math.Abs(out[i]-want) > 1e-9 {
			t.Fatalf("tap %d: got %v want %v", i, out[i], want)
		}
	}

	if out[50] != 0 {
		t.Fatalf("between taps: got %v want 0", out[50])
	}
}
