package conv

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/internal/testutil"
)

func direct(signal, kernel []float64) []float64 {
	out := make([]float64, len(signal)+len(kernel)-1)
	for i, x := range signal {
		for j, h := range kernel {
			out[i+j] += x * h
		}
	}

	return out
}

func TestNewKernelValidation(t *testing.T) {
	if _, err := NewKernel(nil, 64); !errors.Is(err, ErrEmptyImpulseResponse) {
		t.Fatalf("empty IR: got %v want ErrEmptyImpulseResponse", err)
	}

	for _, size := range []int{0, 8, 100} {
		if _, err := NewKernel([]float64{1}, size); !errors.Is(err, ErrInvalidPartitionSize) {
			t.Fatalf("partSize %d: got %v want ErrInvalidPartitionSize", size, err)
		}
	}

	k, err := NewKernel(make([]float64, 1000), 256)
	if err != nil {
		t.Fatal(err)
	}

	if k.Partitions() != 4 {
		t.Fatalf("Partitions: got %d want 4", k.Partitions())
	}
}

func TestConvolverMatchesDirect(t *testing.T) {
	const partSize = 64

	ir := testutil.DeterministicNoise(1, 0.5, 300)
	signal := testutil.DeterministicNoise(2, 1, 1000)

	k, err := NewKernel(ir, partSize)
	if err != nil {
		t.Fatal(err)
	}

	c, err := NewConvolver(k)
	if err != nil {
		t.Fatal(err)
	}

	// Feed in odd-sized blocks, then flush the tail with zeros.
	input := append(append([]float64{}, signal...), make([]float64, len(ir)+partSize)...)
	output := make([]float64, len(input))

	for start := 0; start < len(input); start += 37 {
		end := min(start+37, len(input))
		if err := c.ProcessBlock(output[start:end], input[start:end]); err != nil {
			t.Fatal(err)
		}
	}

	want := direct(signal, ir)
	for i, w := range want {
		if got := output[i+partSize]; math.Abs(got-w) > 1e-9 {
			t.Fatalf("sample %d: got %v want %v", i, got, w)
		}
	}
}

func TestConvolverSilenceSkipKeepsOutputExact(t *testing.T) {
	const partSize = 32

	ir := testutil.DeterministicNoise(3, 1, 100)
	signal := make([]float64, 2000)
	copy(signal, testutil.DeterministicNoise(4, 1, 50))
	copy(signal[1500:], testutil.DeterministicNoise(5, 1, 50))

	k, _ := NewKernel(ir, partSize)
	c, _ := NewConvolver(k)

	input := append(append([]float64{}, signal...), make([]float64, len(ir)+partSize)...)
	output := make([]float64, len(input))
	if err := c.ProcessBlock(output, input); err != nil {
		t.Fatal(err)
	}

	want := direct(signal, ir)
	for i, w := range want {
		if got := output[i+partSize]; math.Abs(got-w) > 1e-9 {
			t.Fatalf("sample %d: got %v want %v", i, got, w)
		}
	}
}

func TestConvolverLengthMismatch(t *testing.T) {
	k, _ := NewKernel([]float64{1}, 16)
	c, _ := NewConvolver(k)

	err := c.ProcessBlock(make([]float64, 4), make([]float64, 5))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("got %v want ErrLengthMismatch", err)
	}
}

func TestConvolverReset(t *testing.T) {
	k, _ := NewKernel([]float64{1, 0.5}, 16)
	c, _ := NewConvolver(k)

	buf := testutil.DC(1, 40)
	out := make([]float64, 40)
	_ = c.ProcessBlock(out, buf)

	c.Reset()

	zeros := make([]float64, 40)
	_ = c.ProcessBlock(out, zeros)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d after Reset: got %v want 0", i, v)
		}
	}
}
