package resample

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/internal/testutil"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		in, out  float64
		up, down int
	}{
		{44100, 48000, 160, 147},
		{48000, 44100, 147, 160},
		{8000, 16000, 2, 1},
		{96000, 48000, 1, 2},
	}

	for _, tt := range tests {
		c, err := New(tt.in, tt.out)
		if err != nil {
			t.Fatalf("New(%v, %v): %v", tt.in, tt.out, err)
		}

		if up, down := c.Ratio(); up != tt.up || down != tt.down {
			t.Fatalf("%v -> %v: got %d/%d want %d/%d", tt.in, tt.out, up, down, tt.up, tt.down)
		}
	}

	c, _ := NewRational(4, 2)
	if up, down := c.Ratio(); up != 2 || down != 1 {
		t.Fatalf("NewRational(4, 2): got %d/%d want 2/1", up, down)
	}
}

func TestInvalidRates(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := New(r, 48000); !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("New(%v): got %v want ErrInvalidRate", r, err)
		}
	}

	if _, err := NewRational(0, 1); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("NewRational(0, 1): got %v want ErrInvalidRate", err)
	}
}

func TestConvertKeepsSineAligned(t *testing.T) {
	const (
		inRate  = 8000.0
		outRate = 16000.0
		hz      = 500.0
	)

	in := testutil.Sine32(hz, inRate, 0.5, 800)

	out, err := Convert(in, inRate, outRate)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if len(out) != 1600 {
		t.Fatalf("length: got %d want 1600", len(out))
	}

	want := testutil.Sine32(hz, outRate, 0.5, 1600)

	// Skip the edges where the filter sees the implicit silence.
	for i := 200; i < 1400; i++ {
		if d := math.Abs(float64(out[i] - want[i])); d > 0.01 {
			t.Fatalf("sample %d: got %v want %v", i, out[i], want[i])
		}
	}
}

func TestConvertDownKeepsLevel(t *testing.T) {
	in := testutil.Sine32(440, 48000, 0.5, 4800)

	out, err := Convert(in, 48000, 44100)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if len(out) != 4410 {
		t.Fatalf("length: got %d want 4410", len(out))
	}

	mid := make([]float64, 0, 3000)
	for _, v := range out[700:3700] {
		mid = append(mid, float64(v))
	}

	if p := testutil.Peak(mid); math.Abs(p-0.5) > 0.01 {
		t.Fatalf("peak: got %v want 0.5", p)
	}
}

func TestProcessBlockSizeIndependent(t *testing.T) {
	src := testutil.DeterministicNoise(1, 0.5, 1000)

	whole, _ := NewRational(3, 2)
	want := whole.Process(src)

	chunked, _ := NewRational(3, 2)

	var got []float64
	for off := 0; off < len(src); off += 37 {
		got = append(got, chunked.Process(src[off:min(off+37, len(src))])...)
	}

	testutil.RequireSliceNearlyEqual(t, got, want, 1e-12)

	chunked.Reset()

	again := chunked.Process(src)
	testutil.RequireSliceNearlyEqual(t, again, want, 1e-12)
}

func TestConvertEqualRatesCopies(t *testing.T) {
	in := []float32{1, 2, 3}

	out, err := Convert(in, 44100, 44100)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	out[0] = 9

	if in[0] != 1 || len(out) != 3 {
		t.Fatalf("got in=%v out=%v", in, out)
	}
}
