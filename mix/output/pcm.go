package output

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
)

// Renderer fills one stereo block. The engine implements it.
type Renderer interface {
	Render(left, right []float64)
}

// Interleave16 converts a stereo block to interleaved int16 PCM, clipping
// at full scale. dst is grown when too short.
func Interleave16(dst []int16, left, right []float64) []int16 {
	n := 2 * len(left)
	if cap(dst) < n {
		dst = make([]int16, n)
	}

	dst = dst[:n]

	for i := range left {
		dst[2*i] = toInt16(left[i])
		dst[2*i+1] = toInt16(right[i])
	}

	return dst
}

func toInt16(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}

	return int16(math.Round(max(-1, min(1, v)) * math.MaxInt16))
}

// Meter holds the peak levels of the most recent block. Safe for
// concurrent use.
type Meter struct {
	left  atomic.Uint64
	right atomic.Uint64
}

// Update measures a block.
func (m *Meter) Update(left, right []float64) {
	m.left.Store(math.Float64bits(vecmath.MaxAbs(left)))
	m.right.Store(math.Float64bits(vecmath.MaxAbs(right)))
}

// Peaks returns the linear peak of each channel.
func (m *Meter) Peaks() (float64, float64) {
	return math.Float64frombits(m.left.Load()), math.Float64frombits(m.right.Load())
}

// PeakDB converts a linear peak to dBFS; silence reads -Inf.
func PeakDB(peak float64) float64 {
	if peak <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(peak)
}
