package resample

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRate is returned for non-positive or non-finite rates.
var ErrInvalidRate = errors.New("resample: invalid rate")

const (
	defaultTapsPerPhase = 32
	defaultCutoff       = 0.92
	defaultBeta         = 7.5
	defaultMaxDen       = 4096
)

type config struct {
	perPhase int
	cutoff   float64
	beta     float64
	maxDen   int
}

// Option configures a Converter.
type Option func(*config)

// WithTapsPerPhase sets the filter length per polyphase branch. Longer
// filters give a steeper transition band.
func WithTapsPerPhase(n int) Option {
	return func(c *config) {
		if n > 1 {
			c.perPhase = n
		}
	}
}

// WithCutoff scales the anti-aliasing cutoff, in (0, 1] of the lower
// Nyquist frequency.
func WithCutoff(v float64) Option {
	return func(c *config) {
		if v > 0 && v <= 1 {
			c.cutoff = v
		}
	}
}

// WithMaxDenominator bounds the rational approximation of the rate ratio.
func WithMaxDenominator(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDen = n
		}
	}
}

// Converter is a streaming rational resampler.
type Converter struct {
	up, down int
	branches [][]float64
	perPhase int
	delay    int

	hist  []float64 // last perPhase-1 inputs
	fed   int       // inputs consumed so far
	next  int       // input index aligned with the next output
	phase int
}

// New returns a converter from inRate to outRate.
func New(inRate, outRate float64, opts ...Option) (*Converter, error) {
	if !(inRate > 0) || !(outRate > 0) || math.IsInf(inRate, 0) || math.IsInf(outRate, 0) {
		return nil, fmt.Errorf("%w: %v -> %v", ErrInvalidRate, inRate, outRate)
	}

	cfg := buildConfig(opts)
	up, down := ratio(outRate/inRate, cfg.maxDen)

	return newConverter(up, down, cfg), nil
}

// NewRational returns a converter producing up outputs per down inputs.
func NewRational(up, down int, opts ...Option) (*Converter, error) {
	if up <= 0 || down <= 0 {
		return nil, fmt.Errorf("%w: ratio %d/%d", ErrInvalidRate, up, down)
	}

	g := gcd(up, down)

	return newConverter(up/g, down/g, buildConfig(opts)), nil
}

func buildConfig(opts []Option) config {
	cfg := config{
		perPhase: defaultTapsPerPhase,
		cutoff:   defaultCutoff,
		beta:     defaultBeta,
		maxDen:   defaultMaxDen,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

func newConverter(up, down int, cfg config) *Converter {
	branches, delay := lowpass(up, down, cfg.perPhase, cfg.cutoff, cfg.beta)

	return &Converter{
		up:       up,
		down:     down,
		branches: branches,
		perPhase: cfg.perPhase,
		delay:    delay,
		hist:     make([]float64, cfg.perPhase-1),
	}
}

// Ratio returns the reduced conversion factors.
func (c *Converter) Ratio() (up, down int) { return c.up, c.down }

// Delay returns the filter delay in output samples.
func (c *Converter) Delay() int { return c.delay }

// Reset clears the filter history.
func (c *Converter) Reset() {
	clear(c.hist)
	c.fed, c.next, c.phase = 0, 0, 0
}

// Process converts one block, keeping state across calls.
func (c *Converter) Process(in []float64) []float64 {
	if len(in) == 0 {
		return nil
	}

	work := make([]float64, 0, len(c.hist)+len(in))
	work = append(append(work, c.hist...), in...)

	// work[k] holds input fed-len(hist)+k.
	origin := c.fed - len(c.hist)
	end := c.fed + len(in)

	out := make([]float64, 0, (len(in)*c.up)/c.down+1)

	for c.next < end {
		pos := c.next - origin

		var y float64
		for j, h := range c.branches[c.phase] {
			y += h * work[pos-j]
		}

		out = append(out, y)

		c.phase += c.down
		c.next += c.phase / c.up
		c.phase %= c.up
	}

	c.fed = end
	copy(c.hist, work[len(work)-len(c.hist):])

	return out
}

// Convert resamples one channel from inRate to outRate. The result has
// round(len(in)*outRate/inRate) samples and no filter delay. Equal rates
// return a copy.
func Convert(in []float32, inRate, outRate float64, opts ...Option) ([]float32, error) {
	if inRate == outRate {
		return append([]float32(nil), in...), nil
	}

	c, err := New(inRate, outRate, opts...)
	if err != nil {
		return nil, err
	}

	src := make([]float64, len(in), len(in)+c.perPhase)
	for i, v := range in {
		src[i] = float64(v)
	}

	// Flush the filter with silence.
	src = append(src, make([]float64, c.perPhase)...)

	y := c.Process(src)
	skip := c.delay
	n := int(math.Round(float64(len(in)) * float64(c.up) / float64(c.down)))

	out := make([]float32, n)
	for i := range out {
		if k := skip + i; k < len(y) {
			out[i] = float32(y[k])
		}
	}

	return out, nil
}
