package dynamics

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/internal/testutil"
)

func TestCompressorDefaults(t *testing.T) {
	c, err := NewCompressor(48000)
	if err != nil {
		t.Fatal(err)
	}

	if c.Threshold() != -24 || c.Ratio() != 12 || c.Attack() != 3 || c.Release() != 250 || c.Knee() != 30 {
		t.Fatalf("defaults: thr %v ratio %v attack %v release %v knee %v",
			c.Threshold(), c.Ratio(), c.Attack(), c.Release(), c.Knee())
	}
}

func TestCompressorValidation(t *testing.T) {
	if _, err := NewCompressor(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}

	c, _ := NewCompressor(48000)
	if err := c.SetRatio(0.5); err == nil {
		t.Fatal("expected error for ratio < 1")
	}
	if err := c.SetKnee(50); err == nil {
		t.Fatal("expected error for knee > 40")
	}
	if err := c.SetRelease(0); err == nil {
		t.Fatal("expected error for zero release")
	}
}

func TestCompressorStaticCurve(t *testing.T) {
	c, _ := NewCompressor(48000)

	// Far below threshold and knee: untouched.
	if g := c.Gain(DBToGain(-70)); g != 1 {
		t.Fatalf("gain at -70 dB: got %v want 1", g)
	}

	// Far above the knee the slope approaches 1/ratio.
	_ = c.SetKnee(0)
	in := DBToGain(0)
	outDB := 20 * math.Log10(in*c.Gain(in))
	want := -24 + 24.0/12
	if math.Abs(outDB-want) > 1 {
		t.Fatalf("hard-knee output at 0 dB: got %.3f want %.3f", outDB, want)
	}
}

func TestCompressorLinksChannels(t *testing.T) {
	c, _ := NewCompressor(48000)

	loud := testutil.DeterministicSine(100, 48000, 1, 4800)
	quiet := testutil.DeterministicSine(100, 48000, 0.01, 4800)
	l := append([]float64{}, loud...)
	r := append([]float64{}, quiet...)
	c.ProcessBlock(l, r)

	// Same gain on both channels: ratios match wherever the input is non-zero.
	for i := 2400; i < 4800; i++ {
		if math.Abs(loud[i]) < 1e-3 {
			continue
		}

		gl := l[i] / loud[i]
		gr := r[i] / quiet[i]
		if math.Abs(gl-gr) > 1e-9 {
			t.Fatalf("frame %d: left gain %v right gain %v", i, gl, gr)
		}
	}

	if c.Reduction() >= 1 {
		t.Fatalf("expected gain reduction, got %v", c.Reduction())
	}
}
