package testutil

import (
	"math"
	"slices"
	"testing"
)

func TestDeterministicSine(t *testing.T) {
	s := DeterministicSine(1000, 48000, 1, 48)
	if len(s) != 48 {
		t.Fatalf("len: got %d want 48", len(s))
	}

	if math.Abs(s[0]) > 1e-15 {
		t.Fatalf("s[0]: got %v want 0", s[0])
	}

	for i, v := range s {
		if v < -1 || v > 1 {
			t.Fatalf("s[%d] = %v out of range", i, v)
		}
	}

	if !slices.Equal(s, DeterministicSine(1000, 48000, 1, 48)) {
		t.Fatal("sine not deterministic")
	}
}

func TestSine32MatchesSine(t *testing.T) {
	s := DeterministicSine(440, 8000, 0.25, 64)
	f := Sine32(440, 8000, 0.25, 64)

	for i := range s {
		if float32(s[i]) != f[i] {
			t.Fatalf("index %d: got %v want %v", i, f[i], s[i])
		}
	}
}

func TestDeterministicNoise(t *testing.T) {
	a := DeterministicNoise(42, 1, 64)

	if !slices.Equal(a, DeterministicNoise(42, 1, 64)) {
		t.Fatal("noise not deterministic")
	}

	if slices.Equal(a, DeterministicNoise(43, 1, 64)) {
		t.Fatal("different seeds produced identical noise")
	}
}

func TestImpulse(t *testing.T) {
	if got := Impulse(8, 3); !slices.Equal(got, []float64{0, 0, 0, 1, 0, 0, 0, 0}) {
		t.Fatalf("Impulse(8, 3): got %v", got)
	}

	if got := Impulse(4, 10); Peak(got) != 0 {
		t.Fatalf("Impulse(4, 10): got %v want zeros", got)
	}
}

func TestDC(t *testing.T) {
	if got := DC(0.5, 3); !slices.Equal(got, []float64{0.5, 0.5, 0.5}) {
		t.Fatalf("DC: got %v", got)
	}
}

type counter struct {
	calls  []int
	sample float64
}

func (c *counter) Render(left, right []float64) {
	c.calls = append(c.calls, len(left))

	for i := range left {
		c.sample++
		left[i] = c.sample
		right[i] = -c.sample
	}
}

func TestRenderStereoBlocks(t *testing.T) {
	c := &counter{}
	l, r := RenderStereo(c, 10, 4)

	if !slices.Equal(c.calls, []int{4, 4, 2}) {
		t.Fatalf("block sizes: got %v want [4 4 2]", c.calls)
	}

	if l[9] != 10 || r[0] != -1 {
		t.Fatalf("samples: l[9]=%v r[0]=%v", l[9], r[0])
	}
}
