// Package testutil holds deterministic signals and tolerance checks shared
// by the package tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out
}

// Sine32 is DeterministicSine in the float32 layout of decoded clip audio.
func Sine32(freqHz, sampleRate, amplitude float64, length int) []float32 {
	out := make([]float32, length)
	for i, v := range DeterministicSine(freqHz, sampleRate, amplitude, length) {
		out[i] = float32(v)
	}

	return out
}

// DeterministicNoise generates white noise with a fixed seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// Impulse generates a unit impulse at pos.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}

	return out
}

// DC generates a constant signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}

	return out
}

// Renderer is anything that fills stereo blocks, such as a graph or an
// engine.
type Renderer interface {
	Render(left, right []float64)
}

// RenderStereo pulls frames from r in blocks of block frames and returns
// both channels.
func RenderStereo(r Renderer, frames, block int) (left, right []float64) {
	left = make([]float64, frames)
	right = make([]float64, frames)

	if block <= 0 {
		block = frames
	}

	for i := 0; i < frames; i += block {
		end := min(i+block, frames)
		r.Render(left[i:end], right[i:end])
	}

	return left, right
}
