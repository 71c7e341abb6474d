package delay

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/dsp/interp"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for size=0")
	}

	if _, err := New(-1); err == nil {
		t.Fatal("expected error for size=-1")
	}
}

func TestNewWithOptions(t *testing.T) {
	d, err := New(16, WithMode(interp.Linear))
	if err != nil {
		t.Fatal(err)
	}

	if d.Len() != 16 {
		t.Fatalf("Len: got %d want 16", d.Len())
	}

	if d.mode != interp.Linear {
		t.Fatalf("mode: got %v want Linear", d.mode)
	}
}

func TestReadWrite(t *testing.T) {
	d, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		d.Write(float64(i))
	}

	for delay, want := range map[int]float64{1: 5, 2: 4, 5: 1} {
		if got := d.Read(delay); got != want {
			t.Fatalf("Read(%d): got %v want %v", delay, got, want)
		}
	}
}

func TestReadFractionalOnRamp(t *testing.T) {
	for _, mode := range []interp.Mode{interp.Linear, interp.Hermite} {
		d, err := New(32, WithMode(mode))
		if err != nil {
			t.Fatal(err)
		}

		for i := range 32 {
			d.Write(float64(i))
		}

		// Read(n) returns 32-n, so a delay of 3.5 lands between 29 and 28.
		got := d.ReadFractional(3.5)
		if math.Abs(got-28.5) > 1e-9 {
			t.Fatalf("%s: got %v want 28.5", mode, got)
		}
	}
}

func TestForDuration(t *testing.T) {
	d, err := ForDuration(2, 48000)
	if err != nil {
		t.Fatal(err)
	}

	if d.MaxDelay() < 96000 {
		t.Fatalf("MaxDelay: got %v want >= 96000", d.MaxDelay())
	}
}

func TestReset(t *testing.T) {
	d, _ := New(4)
	d.Write(1)
	d.Write(2)
	d.Reset()

	for i := 1; i <= 4; i++ {
		if got := d.Read(i); got != 0 {
			t.Fatalf("Read(%d) after reset: got %v want 0", i, got)
		}
	}
}
