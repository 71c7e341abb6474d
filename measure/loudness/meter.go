// Package loudness measures EBU R128 loudness of a rendered mix:
// momentary, short-term and gated integrated loudness in LUFS, loudness
// range in LU and sample peak.
package loudness

import (
	"errors"
	"math"
	"slices"

	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
)

const (
	shelfFreq   = 1500.0
	shelfGainDB = 4.0
	highpassHz  = 38.0

	hopSeconds     = 0.1
	momentaryHops  = 4
	shortTermHops  = 30
	absoluteGate   = -70.0
	relativeGate   = -10.0
	rangeGate      = -20.0
	silenceLUFS    = -120.0
	lowPercentile  = 0.10
	highPercentile = 0.95
)

// ErrChannels is returned when a frame does not match the meter layout.
var ErrChannels = errors.New("loudness: channel count mismatch")

// Meter accumulates K-weighted energy in 100 ms hops. It is not safe for
// concurrent use.
type Meter struct {
	channels int
	shelf    []*biquad.Section
	hpf      []*biquad.Section

	hopLen int
	acc    float64
	filled int

	ring []float64 // energy per hop, newest at ring[(hops-1)%len]
	hops int

	blocks []float64 // 400 ms mean squares, one per hop
	short  []float64 // 3 s mean squares, one per hop

	peak float64
}

// New returns a meter for the given rate and channel count.
func New(sampleRate float64, channels int) (*Meter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, errors.New("loudness: sample rate must be positive and finite")
	}

	if channels <= 0 {
		return nil, ErrChannels
	}

	m := &Meter{
		channels: channels,
		shelf:    make([]*biquad.Section, channels),
		hpf:      make([]*biquad.Section, channels),
		hopLen:   max(1, int(math.Round(hopSeconds*sampleRate))),
		ring:     make([]float64, shortTermHops),
	}

	shelf := biquad.Design(biquad.HighShelf, shelfFreq, biquad.DefaultQ, shelfGainDB, sampleRate)
	hpf := biquad.Design(biquad.Highpass, highpassHz, biquad.DefaultQ, 0, sampleRate)

	for ch := range channels {
		m.shelf[ch] = biquad.NewSection(shelf)
		m.hpf[ch] = biquad.NewSection(hpf)
	}

	return m, nil
}

// Write meters one stereo block, so a Meter can sit next to a WAV writer
// in an offline render.
func (m *Meter) Write(left, right []float64) error {
	if m.channels != 2 {
		return ErrChannels
	}

	var frame [2]float64

	for i := range left {
		frame[0], frame[1] = left[i], right[i]
		m.process(frame[:])
	}

	return nil
}

// ProcessFrame meters one frame holding a sample per channel.
func (m *Meter) ProcessFrame(frame []float64) error {
	if len(frame) != m.channels {
		return ErrChannels
	}

	m.process(frame)

	return nil
}

func (m *Meter) process(frame []float64) {
	for ch, x := range frame {
		m.peak = max(m.peak, math.Abs(x))

		y := m.hpf[ch].ProcessSample(m.shelf[ch].ProcessSample(x))
		m.acc += y * y
	}

	m.filled++
	if m.filled < m.hopLen {
		return
	}

	m.ring[m.hops%len(m.ring)] = m.acc / float64(m.hopLen)
	m.hops++
	m.acc, m.filled = 0, 0

	if m.hops >= momentaryHops {
		m.blocks = append(m.blocks, m.window(momentaryHops))
	}

	if m.hops >= shortTermHops {
		m.short = append(m.short, m.window(shortTermHops))
	}
}

// window returns the mean square over the newest n hops, counting hops
// not yet seen as silence.
func (m *Meter) window(n int) float64 {
	var sum float64
	for k := range min(n, m.hops) {
		sum += m.ring[(m.hops-1-k)%len(m.ring)]
	}

	return sum / float64(n)
}

// Momentary returns the loudness of the last 400 ms.
func (m *Meter) Momentary() float64 { return lufs(m.window(momentaryHops)) }

// ShortTerm returns the loudness of the last 3 s.
func (m *Meter) ShortTerm() float64 { return lufs(m.window(shortTermHops)) }

// Integrated returns the gated loudness of everything metered so far, or
// -Inf when every block is below the absolute gate.
func (m *Meter) Integrated() float64 {
	mean, ok := gatedMean(m.blocks, absoluteGate)
	if !ok {
		return math.Inf(-1)
	}

	mean, ok = gatedMean(m.blocks, max(absoluteGate, lufs(mean)+relativeGate))
	if !ok {
		return math.Inf(-1)
	}

	return lufs(mean)
}

// Range returns the loudness range: the spread between the 10th and 95th
// percentile of gated short-term loudness.
func (m *Meter) Range() float64 {
	mean, ok := gatedMean(m.short, absoluteGate)
	if !ok {
		return 0
	}

	gate := lufs(mean) + rangeGate

	var levels []float64
	for _, e := range m.short {
		if l := lufs(e); l > gate && l > absoluteGate {
			levels = append(levels, l)
		}
	}

	if len(levels) == 0 {
		return 0
	}

	slices.Sort(levels)

	return percentile(levels, highPercentile) - percentile(levels, lowPercentile)
}

// Peak returns the largest absolute sample seen.
func (m *Meter) Peak() float64 { return m.peak }

// Reset clears filters and history.
func (m *Meter) Reset() {
	for ch := range m.channels {
		m.shelf[ch].Reset()
		m.hpf[ch].Reset()
	}

	clear(m.ring)
	m.acc, m.filled, m.hops, m.peak = 0, 0, 0, 0
	m.blocks = m.blocks[:0]
	m.short = m.short[:0]
}

func gatedMean(energies []float64, gate float64) (float64, bool) {
	var (
		sum float64
		n   int
	)

	for _, e := range energies {
		if lufs(e) > gate {
			sum += e
			n++
		}
	}

	if n == 0 {
		return 0, false
	}

	return sum / float64(n), true
}

func percentile(sorted []float64, p float64) float64 {
	return sorted[int(math.Round(p*float64(len(sorted)-1)))]
}

func lufs(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return silenceLUFS
	}

	return -0.691 + 10*math.Log10(meanSquare)
}
