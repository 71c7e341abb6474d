package dither

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	minBitDepth = 8
	maxBitDepth = 32
)

// Option configures a Quantizer.
type Option func(*Quantizer) error

// WithType selects the noise distribution. The default is Triangular.
func WithType(t Type) Option {
	return func(q *Quantizer) error {
		if !t.Valid() {
			return fmt.Errorf("dither: invalid type %d", int(t))
		}

		q.kind = t

		return nil
	}
}

// WithAmplitude scales the noise in LSBs. The default is 1.
func WithAmplitude(amp float64) Option {
	return func(q *Quantizer) error {
		if amp < 0 || math.IsNaN(amp) || math.IsInf(amp, 0) {
			return fmt.Errorf("dither: amplitude must be >= 0 and finite: %v", amp)
		}

		q.amp = amp

		return nil
	}
}

// WithNoiseShaping feeds each sample's quantization error back into the
// next, pushing the noise floor toward high frequencies.
func WithNoiseShaping(on bool) Option {
	return func(q *Quantizer) error {
		q.shape = on
		return nil
	}
}

// WithSeed makes the noise sequence reproducible.
func WithSeed(seed uint64) Option {
	return func(q *Quantizer) error {
		q.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		return nil
	}
}
