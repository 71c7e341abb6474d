package modulation

import (
	"fmt"
	"math"
)

const (
	defaultPhaserRateHz   = 0.5
	defaultPhaserBaseHz   = 1100.0
	defaultPhaserDepthHz  = 1000.0
	defaultPhaserStages   = 4
	maxPhaserStages       = 12
	maxPhaserDepthHz      = 1000.0
	minPhaserFrequencyHz  = 20.0
	phaserNyquistSafety   = 0.49
	phaserCoefficientStep = 8
)

// PhaserOption mutates phaser construction parameters.
type PhaserOption func(*phaserConfig) error

type phaserConfig struct {
	rateHz  float64
	baseHz  float64
	depthHz float64
	stages  int
}

// WithPhaserRateHz sets LFO speed in Hz.
func WithPhaserRateHz(rateHz float64) PhaserOption {
	return func(cfg *phaserConfig) error {
		if rateHz <= 0 || math.IsNaN(rateHz) || math.IsInf(rateHz, 0) {
			return fmt.Errorf("phaser rate must be > 0 and finite: %f", rateHz)
		}

		cfg.rateHz = rateHz

		return nil
	}
}

// WithPhaserBaseHz sets the sweep center frequency.
func WithPhaserBaseHz(baseHz float64) PhaserOption {
	return func(cfg *phaserConfig) error {
		if baseHz <= 0 || math.IsNaN(baseHz) || math.IsInf(baseHz, 0) {
			return fmt.Errorf("phaser base frequency must be > 0 and finite: %f", baseHz)
		}

		cfg.baseHz = baseHz

		return nil
	}
}

// WithPhaserDepthHz sets the sweep depth, the LFO swings base ± depth.
func WithPhaserDepthHz(depthHz float64) PhaserOption {
	return func(cfg *phaserConfig) error {
		if depthHz < 0 || depthHz > maxPhaserDepthHz || math.IsNaN(depthHz) {
			return fmt.Errorf("phaser depth must be in [0, %f]: %f", maxPhaserDepthHz, depthHz)
		}

		cfg.depthHz = depthHz

		return nil
	}
}

// WithPhaserStages sets the number of allpass stages in [1, 12].
func WithPhaserStages(stages int) PhaserOption {
	return func(cfg *phaserConfig) error {
		if stages < 1 || stages > maxPhaserStages {
			return fmt.Errorf("phaser stages must be in [1, %d]: %d", maxPhaserStages, stages)
		}

		cfg.stages = stages

		return nil
	}
}

type allpassStage struct {
	x1 float64
	y1 float64
}

func (s *allpassStage) process(x, a float64) float64 {
	y := a*x + s.x1 - a*s.y1
	s.x1 = x
	s.y1 = flush(y)

	return y
}

// Phaser is a stereo first-order allpass cascade swept by a sine LFO.
type Phaser struct {
	sampleRate float64
	rateHz     float64
	baseHz     float64
	depthHz    float64

	lfoPhase float64
	coef     float64
	counter  int

	stages [2][]allpassStage
}

// NewPhaser creates a phaser with the mixer defaults (4 stages, 0.5 Hz,
// 1100 Hz ± 1000 Hz) and optional overrides.
func NewPhaser(sampleRate float64, opts ...PhaserOption) (*Phaser, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("phaser sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := phaserConfig{
		rateHz:  defaultPhaserRateHz,
		baseHz:  defaultPhaserBaseHz,
		depthHz: defaultPhaserDepthHz,
		stages:  defaultPhaserStages,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	p := &Phaser{
		sampleRate: sampleRate,
		rateHz:     cfg.rateHz,
		baseHz:     cfg.baseHz,
		depthHz:    cfg.depthHz,
	}

	for ch := range p.stages {
		p.stages[ch] = make([]allpassStage, cfg.stages)
	}

	p.coef = allpassCoefficient(p.baseHz, sampleRate)

	return p, nil
}

// SetRateHz sets LFO speed in Hz.
func (p *Phaser) SetRateHz(rateHz float64) error {
	if rateHz <= 0 || math.IsNaN(rateHz) || math.IsInf(rateHz, 0) {
		return fmt.Errorf("phaser rate must be > 0 and finite: %f", rateHz)
	}

	p.rateHz = rateHz

	return nil
}

// SetDepthHz sets sweep depth in [0, 1000] Hz.
func (p *Phaser) SetDepthHz(depthHz float64) error {
	if depthHz < 0 || depthHz > maxPhaserDepthHz || math.IsNaN(depthHz) {
		return fmt.Errorf("phaser depth must be in [0, %f]: %f", maxPhaserDepthHz, depthHz)
	}

	p.depthHz = depthHz

	return nil
}

// SetBaseHz sets the sweep center.
func (p *Phaser) SetBaseHz(baseHz float64) error {
	if baseHz <= 0 || math.IsNaN(baseHz) || math.IsInf(baseHz, 0) {
		return fmt.Errorf("phaser base frequency must be > 0 and finite: %f", baseHz)
	}

	p.baseHz = baseHz

	return nil
}

// RateHz returns LFO speed in Hz.
func (p *Phaser) RateHz() float64 { return p.rateHz }

// DepthHz returns the sweep depth.
func (p *Phaser) DepthHz() float64 { return p.depthHz }

// Stages returns the number of allpass stages per channel.
func (p *Phaser) Stages() int { return len(p.stages[0]) }

// Reset clears allpass and LFO state.
func (p *Phaser) Reset() {
	for ch := range p.stages {
		clear(p.stages[ch])
	}

	p.lfoPhase = 0
	p.counter = 0
}

// ProcessStereo processes one frame and returns the wet pair.
func (p *Phaser) ProcessStereo(l, r float64) (float64, float64) {
	if p.counter == 0 {
		freq := p.baseHz + p.depthHz*math.Sin(p.lfoPhase)
		p.coef = allpassCoefficient(freq, p.sampleRate)
	}

	p.counter++
	if p.counter == phaserCoefficientStep {
		p.counter = 0
	}

	a := p.coef
	for i := range p.stages[0] {
		l = p.stages[0][i].process(l, a)
		r = p.stages[1][i].process(r, a)
	}

	p.lfoPhase += 2 * math.Pi * p.rateHz / p.sampleRate
	if p.lfoPhase >= 2*math.Pi {
		p.lfoPhase -= 2 * math.Pi
	}

	return l, r
}

// ProcessBlock runs ProcessStereo over a block in place.
func (p *Phaser) ProcessBlock(left, right []float64) {
	for i := range left {
		left[i], right[i] = p.ProcessStereo(left[i], right[i])
	}
}

func allpassCoefficient(freqHz, sampleRate float64) float64 {
	maxFreq := phaserNyquistSafety * sampleRate
	if freqHz < minPhaserFrequencyHz {
		freqHz = minPhaserFrequencyHz
	} else if freqHz > maxFreq {
		freqHz = maxFreq
	}

	g := math.Tan(math.Pi * freqHz / sampleRate)

	return (1 - g) / (1 + g)
}

func flush(x float64) float64 {
	if x > -1e-30 && x < 1e-30 {
		return 0
	}

	return x
}
