// Package clock provides the audio time base of the mixer.
//
// Audio time only moves when the render path produces frames, so every
// scheduling decision made against it is immune to timer jitter on the
// control side.
package clock

import (
	"math"
	"sync/atomic"
)

// Clock exposes monotonic seconds since engine start.
type Clock interface {
	Now() float64
}

// SampleClock counts rendered frames. Advance is called by the render path
// only; Now and Frames are safe from any goroutine.
type SampleClock struct {
	sampleRate float64
	frames     atomic.Int64
}

// NewSampleClock returns a clock at frame zero.
func NewSampleClock(sampleRate float64) *SampleClock {
	return &SampleClock{sampleRate: sampleRate}
}

// Now returns the audio time in seconds.
func (c *SampleClock) Now() float64 {
	return float64(c.frames.Load()) / c.sampleRate
}

// Frames returns the number of frames rendered so far.
func (c *SampleClock) Frames() int64 {
	return c.frames.Load()
}

// SampleRate returns the frame rate in Hz.
func (c *SampleClock) SampleRate() float64 {
	return c.sampleRate
}

// Advance moves the clock forward by n frames.
func (c *SampleClock) Advance(n int) {
	c.frames.Add(int64(n))
}

// FrameAt converts a timestamp in seconds to the nearest frame index.
func (c *SampleClock) FrameAt(seconds float64) int64 {
	return int64(math.Round(seconds * c.sampleRate))
}
