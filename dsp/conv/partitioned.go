package conv

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by the partitioned convolver.
var (
	ErrEmptyImpulseResponse = errors.New("conv: empty impulse response")
	ErrInvalidPartitionSize = errors.New("conv: partition size must be a power of two >= 16")
	ErrLengthMismatch       = errors.New("conv: buffer length mismatch")
)

// Kernel holds the partition spectra of one impulse response.
type Kernel struct {
	partSize int
	fftSize  int
	length   int
	spectra  [][]complex128
}

// NewKernel partitions ir into blocks of partSize samples and transforms
// each block, zero-padded to 2*partSize, into the frequency domain.
func NewKernel(ir []float64, partSize int) (*Kernel, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	if partSize < 16 || partSize&(partSize-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPartitionSize, partSize)
	}

	fftSize := 2 * partSize

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: kernel FFT plan: %w", err)
	}

	count := (len(ir) + partSize - 1) / partSize
	padded := make([]complex128, fftSize)
	spectra := make([][]complex128, count)

	for k := range spectra {
		clear(padded)

		chunk := ir[k*partSize : min((k+1)*partSize, len(ir))]
		for i, v := range chunk {
			padded[i] = complex(v, 0)
		}

		spectra[k] = make([]complex128, fftSize)
		if err := plan.Forward(spectra[k], padded); err != nil {
			return nil, fmt.Errorf("conv: kernel partition %d FFT: %w", k, err)
		}
	}

	return &Kernel{
		partSize: partSize,
		fftSize:  fftSize,
		length:   len(ir),
		spectra:  spectra,
	}, nil
}

// PartitionSize returns the partition length, which is also the latency of
// every Convolver built on this kernel.
func (k *Kernel) PartitionSize() int { return k.partSize }

// Partitions returns the number of partitions.
func (k *Kernel) Partitions() int { return len(k.spectra) }

// Len returns the original impulse response length.
func (k *Kernel) Len() int { return k.length }

// Convolver streams a signal through a shared Kernel.
//
// It is single-threaded; one instance must only be driven from one
// goroutine at a time.
type Convolver struct {
	kernel *Kernel
	plan   *algofft.Plan[complex128]

	// fdl holds input spectra, newest at head.
	fdl  [][]complex128
	head int

	window  []float64 // previous partition followed by the current one
	pos     int
	ready   []float64
	scratch []complex128
	acc     []complex128

	// quiet counts consecutive all-zero input partitions. Once it exceeds
	// the kernel length in partitions the output is known to be silent.
	quiet int
	err   error
}

// NewConvolver allocates streaming state for kernel.
func NewConvolver(kernel *Kernel) (*Convolver, error) {
	if kernel == nil || len(kernel.spectra) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	plan, err := algofft.NewPlan64(kernel.fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: convolver FFT plan: %w", err)
	}

	fdl := make([][]complex128, len(kernel.spectra))
	for i := range fdl {
		fdl[i] = make([]complex128, kernel.fftSize)
	}

	return &Convolver{
		kernel:  kernel,
		plan:    plan,
		fdl:     fdl,
		window:  make([]float64, kernel.fftSize),
		ready:   make([]float64, kernel.partSize),
		scratch: make([]complex128, kernel.fftSize),
		acc:     make([]complex128, kernel.fftSize),
		quiet:   len(fdl) + 1,
	}, nil
}

// Latency returns the processing latency in samples.
func (c *Convolver) Latency() int {
	return c.kernel.partSize
}

// ProcessBlock convolves src into dst. Blocks may have any length; output
// is delayed by Latency() samples. Zero-alloc.
func (c *Convolver) ProcessBlock(dst, src []float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: dst %d, src %d", ErrLengthMismatch, len(dst), len(src))
	}

	p := c.kernel.partSize
	for i, x := range src {
		dst[i] = c.ready[c.pos]
		c.window[p+c.pos] = x

		c.pos++
		if c.pos == p {
			c.partition()
			c.pos = 0
		}
	}

	err := c.err
	c.err = nil

	return err
}

// Reset clears all streaming state.
func (c *Convolver) Reset() {
	for _, s := range c.fdl {
		clear(s)
	}

	clear(c.window)
	clear(c.ready)
	c.pos = 0
	c.head = 0
	c.quiet = len(c.fdl) + 1
}

func (c *Convolver) partition() {
	p := c.kernel.partSize
	n := len(c.fdl)

	silent := true
	for _, v := range c.window[p:] {
		if v != 0 {
			silent = false
			break
		}
	}

	if silent {
		c.quiet++
	} else {
		c.quiet = 0
	}

	if c.quiet > n {
		if c.quiet == n+1 {
			for _, s := range c.fdl {
				clear(s)
			}

			clear(c.ready)
		}

		copy(c.window[:p], c.window[p:])

		return
	}

	c.head = (c.head + n - 1) % n

	for i, v := range c.window {
		c.scratch[i] = complex(v, 0)
	}

	if err := c.plan.Forward(c.fdl[c.head], c.scratch); err != nil {
		c.err = fmt.Errorf("conv: forward FFT: %w", err)
		return
	}

	clear(c.acc)

	for k, h := range c.kernel.spectra {
		x := c.fdl[(c.head+k)%n]
		for i := range c.acc {
			c.acc[i] += x[i] * h[i]
		}
	}

	if err := c.plan.Inverse(c.scratch, c.acc); err != nil {
		c.err = fmt.Errorf("conv: inverse FFT: %w", err)
		return
	}

	for i := range p {
		c.ready[i] = real(c.scratch[p+i])
	}

	copy(c.window[:p], c.window[p:])
}
