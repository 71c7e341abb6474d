package dither

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Quantizer converts samples in [-1, 1] to signed integers of a fixed bit
// depth. It keeps per-channel error state, so use one per channel.
type Quantizer struct {
	bits  int
	kind  Type
	amp   float64
	shape bool
	rng   *rand.Rand

	scale  float64
	lo, hi int
	err    float64
}

// New returns a TPDF quantizer for bitDepth.
func New(bitDepth int, opts ...Option) (*Quantizer, error) {
	if bitDepth < minBitDepth || bitDepth > maxBitDepth {
		return nil, fmt.Errorf("dither: bit depth must be in [%d, %d]: %d", minBitDepth, maxBitDepth, bitDepth)
	}

	q := &Quantizer{bits: bitDepth, kind: Triangular, amp: 1}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(q); err != nil {
			return nil, err
		}
	}

	if q.rng == nil {
		q.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	q.hi = int(int64(1)<<(bitDepth-1) - 1)
	q.lo = -q.hi
	q.scale = float64(q.hi)

	return q, nil
}

// Quantize returns x as an integer sample. NaN maps to silence and the
// result is clamped to the symmetric range of the bit depth.
func (q *Quantizer) Quantize(x float64) int {
	if math.IsNaN(x) {
		x = 0
	}

	v := max(-1, min(1, x)) * q.scale
	if q.shape {
		v -= q.err
	}

	out := int(math.Round(v + q.noise()))
	out = max(q.lo, min(q.hi, out))

	if q.shape {
		// Clamping can leave a large error; bound it to avoid runaway
		// feedback on clipped material.
		q.err = max(-1, min(1, float64(out)-v))
	}

	return out
}

// QuantizeBlock quantizes src into dst, which must be at least as long.
func (q *Quantizer) QuantizeBlock(dst []int, src []float64) {
	for i, x := range src {
		dst[i] = q.Quantize(x)
	}
}

// Reset clears the error feedback state.
func (q *Quantizer) Reset() { q.err = 0 }

// BitDepth returns the target bit depth.
func (q *Quantizer) BitDepth() int { return q.bits }

// Type returns the noise distribution.
func (q *Quantizer) Type() Type { return q.kind }

func (q *Quantizer) noise() float64 {
	switch q.kind {
	case Rectangular:
		return q.amp * (q.rng.Float64() - 0.5)
	case Triangular:
		return q.amp * (q.rng.Float64() - q.rng.Float64())
	default:
		return 0
	}
}
