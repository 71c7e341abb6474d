package effects

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/delay"
	"github.com/cwbudde/algo-mixer/dsp/interp"
)

const (
	defaultEchoTimeSeconds = 0.5
	defaultEchoFeedback    = 0.3
	maxEchoTimeSeconds     = 2.0
	minEchoTimeSeconds     = 1.0 / 48000
	maxEchoFeedback        = 0.9
)

// Echo is a stereo feedback delay returning the wet signal only:
//
//	wet[n]   = line[n - d]
//	line[n]  = in[n] + feedback*wet[n]
//
// Delay time and feedback are passed per frame so automation can drive
// them sample-accurately.
type Echo struct {
	sampleRate float64
	lines      [2]*delay.Line
}

// NewEcho allocates lines for delays up to 2 seconds.
func NewEcho(sampleRate float64) (*Echo, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("echo sample rate must be > 0: %f", sampleRate)
	}

	e := &Echo{sampleRate: sampleRate}
	for ch := range e.lines {
		line, err := delay.ForDuration(maxEchoTimeSeconds, sampleRate, delay.WithMode(interp.Linear))
		if err != nil {
			return nil, fmt.Errorf("echo delay line: %w", err)
		}

		e.lines[ch] = line
	}

	return e, nil
}

// DefaultEchoTime returns the default delay time in seconds.
func DefaultEchoTime() float64 { return defaultEchoTimeSeconds }

// DefaultEchoFeedback returns the default feedback amount.
func DefaultEchoFeedback() float64 { return defaultEchoFeedback }

// MaxEchoTime returns the longest supported delay time in seconds.
func MaxEchoTime() float64 { return maxEchoTimeSeconds }

// ClampFeedback limits feedback to [0, 0.9], the stable range.
func ClampFeedback(feedback float64) float64 {
	if math.IsNaN(feedback) || feedback < 0 {
		return 0
	}

	return math.Min(feedback, maxEchoFeedback)
}

// ClampTime limits a delay time to the supported range.
func ClampTime(seconds float64) float64 {
	if math.IsNaN(seconds) || seconds < minEchoTimeSeconds {
		return minEchoTimeSeconds
	}

	return math.Min(seconds, maxEchoTimeSeconds)
}

// ProcessStereo processes one frame with the given delay (seconds) and
// feedback, returning the wet pair.
func (e *Echo) ProcessStereo(l, r, seconds, feedback float64) (float64, float64) {
	d := ClampTime(seconds) * e.sampleRate
	fb := ClampFeedback(feedback)

	wl := e.lines[0].ReadFractional(d)
	wr := e.lines[1].ReadFractional(d)

	e.lines[0].Write(flush(l + wl*fb))
	e.lines[1].Write(flush(r + wr*fb))

	return wl, wr
}

// Reset clears the delay lines.
func (e *Echo) Reset() {
	for _, line := range e.lines {
		line.Reset()
	}
}

func flush(x float64) float64 {
	if x > -1e-30 && x < 1e-30 {
		return 0
	}

	return x
}
