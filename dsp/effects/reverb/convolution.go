package reverb

import (
	"fmt"

	"github.com/cwbudde/algo-mixer/dsp/conv"
)

// Convolution is a stereo, fully wet convolution reverb.
// Each channel is convolved with its own half of the Impulse.
type Convolution struct {
	left, right *conv.Convolver
}

// NewConvolution allocates streaming state for imp.
func NewConvolution(imp *Impulse) (*Convolution, error) {
	if imp == nil {
		return nil, conv.ErrEmptyImpulseResponse
	}

	left, err := conv.NewConvolver(imp.left)
	if err != nil {
		return nil, fmt.Errorf("reverb: left convolver: %w", err)
	}

	right, err := conv.NewConvolver(imp.right)
	if err != nil {
		return nil, fmt.Errorf("reverb: right convolver: %w", err)
	}

	return &Convolution{left: left, right: right}, nil
}

// ProcessStereo convolves the input pair into the output pair.
// Output slices must not alias the inputs.
func (c *Convolution) ProcessStereo(dstL, dstR, srcL, srcR []float64) error {
	if err := c.left.ProcessBlock(dstL, srcL); err != nil {
		return fmt.Errorf("reverb: %w", err)
	}

	if err := c.right.ProcessBlock(dstR, srcR); err != nil {
		return fmt.Errorf("reverb: %w", err)
	}

	return nil
}

// Reset clears the tail.
func (c *Convolution) Reset() {
	c.left.Reset()
	c.right.Reset()
}

// Latency returns the processing latency in samples.
func (c *Convolution) Latency() int {
	return c.left.Latency()
}
