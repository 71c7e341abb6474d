package reverb

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-mixer/dsp/conv"
)

const (
	defaultImpulseSeconds = 2.0
	defaultPartitionSize  = 1024
	defaultImpulseSeed    = 0x5eed

	// decayDB is the level reached at the end of the tail.
	decayDB = -60.0

	// Loudness calibration applied on top of RMS normalization, matching
	// the usual convolver convention (-58 dB at 44.1 kHz).
	gainCalibrationDB         = -58.0
	gainCalibrationSampleRate = 44100.0
	minPower                  = 0.000125
)

// ImpulseOption configures NewImpulse.
type ImpulseOption func(*impulseConfig) error

type impulseConfig struct {
	seconds   float64
	partSize  int
	seed      int64
	normalize bool
}

// WithDuration sets the tail length in seconds.
func WithDuration(seconds float64) ImpulseOption {
	return func(cfg *impulseConfig) error {
		if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return fmt.Errorf("reverb duration must be > 0 and finite: %f", seconds)
		}

		cfg.seconds = seconds

		return nil
	}
}

// WithPartitionSize sets the convolution partition size (and latency).
func WithPartitionSize(size int) ImpulseOption {
	return func(cfg *impulseConfig) error {
		cfg.partSize = size
		return nil
	}
}

// WithSeed fixes the noise seed.
func WithSeed(seed int64) ImpulseOption {
	return func(cfg *impulseConfig) error {
		cfg.seed = seed
		return nil
	}
}

// WithNormalize toggles RMS normalization of the generated response.
func WithNormalize(enable bool) ImpulseOption {
	return func(cfg *impulseConfig) error {
		cfg.normalize = enable
		return nil
	}
}

// Impulse is a stereo impulse response prepared for convolution.
type Impulse struct {
	left, right *conv.Kernel
	sampleRate  float64
	seconds     float64
}

// NoiseImpulse returns a stereo response of exponentially decaying white
// noise, reaching -60 dB after seconds. Channels use independent noise.
func NoiseImpulse(sampleRate, seconds float64, seed int64) [2][]float64 {
	n := max(1, int(sampleRate*seconds))
	rate := math.Log(math.Pow(10, -decayDB/20)) / float64(n)
	rng := rand.New(rand.NewSource(seed))

	var ir [2][]float64
	for ch := range ir {
		ir[ch] = make([]float64, n)
		for i := range ir[ch] {
			ir[ch][i] = (rng.Float64()*2 - 1) * math.Exp(-rate*float64(i))
		}
	}

	return ir
}

// NewImpulse generates the shared reverb response for sampleRate.
func NewImpulse(sampleRate float64, opts ...ImpulseOption) (*Impulse, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("reverb sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := impulseConfig{
		seconds:   defaultImpulseSeconds,
		partSize:  defaultPartitionSize,
		seed:      defaultImpulseSeed,
		normalize: true,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	ir := NoiseImpulse(sampleRate, cfg.seconds, cfg.seed)
	if cfg.normalize {
		scale := normalizationScale(ir, sampleRate)
		for ch := range ir {
			for i := range ir[ch] {
				ir[ch][i] *= scale
			}
		}
	}

	left, err := conv.NewKernel(ir[0], cfg.partSize)
	if err != nil {
		return nil, fmt.Errorf("reverb: left kernel: %w", err)
	}

	right, err := conv.NewKernel(ir[1], cfg.partSize)
	if err != nil {
		return nil, fmt.Errorf("reverb: right kernel: %w", err)
	}

	return &Impulse{
		left:       left,
		right:      right,
		sampleRate: sampleRate,
		seconds:    cfg.seconds,
	}, nil
}

// SampleRate returns the rate the response was generated for.
func (imp *Impulse) SampleRate() float64 { return imp.sampleRate }

// Duration returns the tail length in seconds.
func (imp *Impulse) Duration() float64 { return imp.seconds }

// Latency returns the convolution latency in samples.
func (imp *Impulse) Latency() int { return imp.left.PartitionSize() }

func normalizationScale(ir [2][]float64, sampleRate float64) float64 {
	var power float64
	var count int

	for _, ch := range ir {
		for _, v := range ch {
			power += v * v
		}

		count += len(ch)
	}

	power = math.Sqrt(power / float64(count))
	if math.IsNaN(power) || math.IsInf(power, 0) || power < minPower {
		power = minPower
	}

	scale := 1 / power
	scale *= math.Pow(10, gainCalibrationDB/20)
	scale *= gainCalibrationSampleRate / sampleRate

	return scale
}
