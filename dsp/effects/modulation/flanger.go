package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/delay"
)

const (
	defaultFlangerRateHz       = 0.25
	defaultFlangerCenterDelay  = 0.005
	defaultFlangerDepthSeconds = 0.002
	defaultFlangerFeedback     = 0.5

	maxFlangerDepthSeconds = 0.002
	minFlangerDelaySeconds = 0.0001
	maxFlangerDelaySeconds = 0.010
	maxFlangerFeedback     = 0.99
)

// FlangerOption mutates flanger construction parameters.
type FlangerOption func(*flangerConfig) error

type flangerConfig struct {
	rateHz   float64
	center   float64
	depth    float64
	feedback float64
}

// WithFlangerRateHz sets LFO speed in Hz.
func WithFlangerRateHz(rateHz float64) FlangerOption {
	return func(cfg *flangerConfig) error {
		if rateHz <= 0 || math.IsNaN(rateHz) || math.IsInf(rateHz, 0) {
			return fmt.Errorf("flanger rate must be > 0 and finite: %f", rateHz)
		}

		cfg.rateHz = rateHz

		return nil
	}
}

// WithFlangerCenterDelaySeconds sets the delay the LFO swings around.
func WithFlangerCenterDelaySeconds(center float64) FlangerOption {
	return func(cfg *flangerConfig) error {
		if center < minFlangerDelaySeconds || center > maxFlangerDelaySeconds || math.IsNaN(center) {
			return fmt.Errorf("flanger center delay must be in [%f, %f]: %f",
				minFlangerDelaySeconds, maxFlangerDelaySeconds, center)
		}

		cfg.center = center

		return nil
	}
}

// WithFlangerDepthSeconds sets modulation depth in [0, 2 ms].
func WithFlangerDepthSeconds(depth float64) FlangerOption {
	return func(cfg *flangerConfig) error {
		if depth < 0 || depth > maxFlangerDepthSeconds || math.IsNaN(depth) {
			return fmt.Errorf("flanger depth must be in [0, %f]: %f", maxFlangerDepthSeconds, depth)
		}

		cfg.depth = depth

		return nil
	}
}

// WithFlangerFeedback sets the initial feedback amount.
func WithFlangerFeedback(feedback float64) FlangerOption {
	return func(cfg *flangerConfig) error {
		if math.Abs(feedback) > maxFlangerFeedback || math.IsNaN(feedback) {
			return fmt.Errorf("flanger feedback must be in [-%f, %f]: %f",
				maxFlangerFeedback, maxFlangerFeedback, feedback)
		}

		cfg.feedback = feedback

		return nil
	}
}

// Flanger is a stereo modulated short delay with feedback.
type Flanger struct {
	sampleRate float64
	rateHz     float64
	center     float64
	depth      float64
	feedback   float64

	lfoPhase float64
	lines    [2]*delay.Line
}

// NewFlanger creates a flanger with the mixer defaults (5 ms ± 2 ms,
// 0.25 Hz, feedback 0.5) and optional overrides.
func NewFlanger(sampleRate float64, opts ...FlangerOption) (*Flanger, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("flanger sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := flangerConfig{
		rateHz:   defaultFlangerRateHz,
		center:   defaultFlangerCenterDelay,
		depth:    defaultFlangerDepthSeconds,
		feedback: defaultFlangerFeedback,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	f := &Flanger{
		sampleRate: sampleRate,
		rateHz:     cfg.rateHz,
		center:     cfg.center,
		depth:      cfg.depth,
		feedback:   cfg.feedback,
	}

	for ch := range f.lines {
		line, err := delay.ForDuration(maxFlangerDelaySeconds+maxFlangerDepthSeconds, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("flanger delay line: %w", err)
		}

		f.lines[ch] = line
	}

	return f, nil
}

// SetRateHz sets LFO speed in Hz.
func (f *Flanger) SetRateHz(rateHz float64) error {
	if rateHz <= 0 || math.IsNaN(rateHz) || math.IsInf(rateHz, 0) {
		return fmt.Errorf("flanger rate must be > 0 and finite: %f", rateHz)
	}

	f.rateHz = rateHz

	return nil
}

// SetDepthSeconds sets modulation depth in [0, 2 ms].
func (f *Flanger) SetDepthSeconds(depth float64) error {
	if depth < 0 || depth > maxFlangerDepthSeconds || math.IsNaN(depth) {
		return fmt.Errorf("flanger depth must be in [0, %f]: %f", maxFlangerDepthSeconds, depth)
	}

	f.depth = depth

	return nil
}

// SetCenterDelaySeconds sets the delay the LFO swings around.
func (f *Flanger) SetCenterDelaySeconds(center float64) error {
	if center < minFlangerDelaySeconds || center > maxFlangerDelaySeconds || math.IsNaN(center) {
		return fmt.Errorf("flanger center delay must be in [%f, %f]: %f",
			minFlangerDelaySeconds, maxFlangerDelaySeconds, center)
	}

	f.center = center

	return nil
}

// SetFeedback sets feedback in [-0.99, 0.99].
func (f *Flanger) SetFeedback(feedback float64) error {
	if math.Abs(feedback) > maxFlangerFeedback || math.IsNaN(feedback) {
		return fmt.Errorf("flanger feedback must be in [-%f, %f]: %f",
			maxFlangerFeedback, maxFlangerFeedback, feedback)
	}

	f.feedback = feedback

	return nil
}

// Feedback returns the feedback amount.
func (f *Flanger) Feedback() float64 { return f.feedback }

// DepthSeconds returns modulation depth in seconds.
func (f *Flanger) DepthSeconds() float64 { return f.depth }

// Reset clears delay and LFO state.
func (f *Flanger) Reset() {
	for _, line := range f.lines {
		line.Reset()
	}

	f.lfoPhase = 0
}

// ProcessStereo processes one frame and returns the wet pair.
func (f *Flanger) ProcessStereo(l, r float64) (float64, float64) {
	delaySamples := (f.center + f.depth*math.Sin(f.lfoPhase)) * f.sampleRate

	wl := f.lines[0].ReadFractional(delaySamples)
	wr := f.lines[1].ReadFractional(delaySamples)

	f.lines[0].Write(flush(l + wl*f.feedback))
	f.lines[1].Write(flush(r + wr*f.feedback))

	f.lfoPhase += 2 * math.Pi * f.rateHz / f.sampleRate
	if f.lfoPhase >= 2*math.Pi {
		f.lfoPhase -= 2 * math.Pi
	}

	return wl, wr
}

// ProcessBlock runs ProcessStereo over a block in place.
func (f *Flanger) ProcessBlock(left, right []float64) {
	for i := range left {
		left[i], right[i] = f.ProcessStereo(left[i], right[i])
	}
}
