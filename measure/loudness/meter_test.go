package loudness

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/internal/testutil"
)

const rate = 48000.0

func TestSineLoudness(t *testing.T) {
	m, err := New(rate, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A full-scale 1 kHz sine reads about -3 LUFS through K-weighting.
	for _, x := range testutil.DeterministicSine(1000, rate, 1, int(4*rate)) {
		if err := m.ProcessFrame([]float64{x}); err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
	}

	const want = -3.03

	for name, got := range map[string]float64{
		"momentary":  m.Momentary(),
		"short-term": m.ShortTerm(),
		"integrated": m.Integrated(),
	} {
		if math.Abs(got-want) > 0.2 {
			t.Fatalf("%s: got %v want %v", name, got, want)
		}
	}

	if p := m.Peak(); math.Abs(p-1) > 1e-3 {
		t.Fatalf("Peak: got %v want 1", p)
	}
}

func TestStereoAddsPower(t *testing.T) {
	m, err := New(rate, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sig := testutil.DeterministicSine(1000, rate, 1, int(4*rate))
	if err := m.Write(sig, sig); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := m.Integrated(); math.Abs(got-0) > 0.2 {
		t.Fatalf("Integrated: got %v want about 0", got)
	}
}

func TestGatingIgnoresQuietTail(t *testing.T) {
	m, _ := New(rate, 1)

	feed := func(amp float64, seconds float64) {
		for _, x := range testutil.DeterministicSine(1000, rate, amp, int(seconds*rate)) {
			m.ProcessFrame([]float64{x})
		}
	}

	feed(1, 10)
	loud := m.Integrated()

	feed(0.0001, 10)

	if got := m.Integrated(); math.Abs(got-loud) > 0.1 {
		t.Fatalf("Integrated after quiet tail: got %v want %v", got, loud)
	}
}

func TestSilence(t *testing.T) {
	m, _ := New(rate, 2)

	silence := make([]float64, int(rate))
	m.Write(silence, silence)

	if got := m.Integrated(); !math.IsInf(got, -1) {
		t.Fatalf("Integrated: got %v want -Inf", got)
	}

	if got := m.Momentary(); got > -100 {
		t.Fatalf("Momentary: got %v want silence", got)
	}

	if got := m.Range(); got != 0 {
		t.Fatalf("Range: got %v want 0", got)
	}
}

func TestRangeOfTwoLevels(t *testing.T) {
	m, _ := New(rate, 1)

	// 20 s at full scale then 20 s 10 dB down.
	for _, amp := range []float64{1, math.Pow(10, -10.0/20)} {
		for _, x := range testutil.DeterministicSine(1000, rate, amp, int(20*rate)) {
			m.ProcessFrame([]float64{x})
		}
	}

	if got := m.Range(); math.Abs(got-10) > 0.5 {
		t.Fatalf("Range: got %v want 10", got)
	}

	m.Reset()

	if m.Peak() != 0 || len(m.blocks) != 0 {
		t.Fatal("Reset kept state")
	}
}

func TestChannelErrors(t *testing.T) {
	if _, err := New(rate, 0); !errors.Is(err, ErrChannels) {
		t.Fatalf("New(0 channels): got %v want ErrChannels", err)
	}

	if _, err := New(0, 2); err == nil {
		t.Fatal("New accepted rate 0")
	}

	m, _ := New(rate, 1)

	if err := m.Write([]float64{0}, []float64{0}); !errors.Is(err, ErrChannels) {
		t.Fatalf("Write on mono: got %v want ErrChannels", err)
	}

	if err := m.ProcessFrame([]float64{0, 0}); !errors.Is(err, ErrChannels) {
		t.Fatalf("ProcessFrame: got %v want ErrChannels", err)
	}
}
