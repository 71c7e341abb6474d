package fxchain

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/effects"
	"github.com/cwbudde/algo-mixer/dsp/effects/reverb"
	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
)

const (
	// DefaultSmoothing is the time constant for EQ, filter and send changes.
	DefaultSmoothing = 0.010

	lowShelfHz  = 320.0
	peakHz      = 1000.0
	peakQ       = 0.5
	highShelfHz = 3200.0

	// Inert bounds of the dual filter and the ends of the bias sweeps.
	highpassInertHz = 20.0
	lowpassInertHz  = 20000.0
	lowpassSweepHz  = 100.0
	highpassSweepHz = 10000.0

	// MaxDelayFeedback and MaxFlangerFeedback bound the feedback loops.
	MaxDelayFeedback   = 0.9
	MaxFlangerFeedback = 0.95

	defaultFlangerFeedback = 0.5
	delayTimeSmoothing     = 0.05
)

// Send identifies one parallel effect send.
type Send int

const (
	SendReverb Send = iota
	SendDelay
	SendPhaser
	SendFlanger
	numSends
)

func (s Send) String() string {
	switch s {
	case SendReverb:
		return "reverb"
	case SendDelay:
		return "delay"
	case SendPhaser:
		return "phaser"
	case SendFlanger:
		return "flanger"
	default:
		return "unknown"
	}
}

// Settings is the stored control state of a chain.
type Settings struct {
	EQ              project.EQSettings
	Effects         project.EffectsSettings
	DelayTime       float64
	DelayFeedback   float64
	FlangerFeedback float64
}

// Option configures a Chain.
type Option func(*options)

type options struct {
	impulse   *reverb.Impulse
	smoothing float64
}

// WithImpulse shares a reverb impulse between chains.
func WithImpulse(imp *reverb.Impulse) Option {
	return func(o *options) { o.impulse = imp }
}

// WithSmoothing overrides DefaultSmoothing.
func WithSmoothing(tc float64) Option {
	return func(o *options) {
		if tc >= 0 {
			o.smoothing = tc
		}
	}
}

// Chain is one track's effects chain.
type Chain struct {
	g         *graph.Graph
	smoothing float64

	input  *graph.Node
	low    *graph.Node
	mid    *graph.Node
	high   *graph.Node
	hp     *graph.Node
	lp     *graph.Node
	sends  [numSends]*graph.Node
	fx     [numSends]*graph.Node
	comp   *graph.Node
	output *graph.Node
	nodes  []*graph.Node

	mu       sync.Mutex
	settings Settings
	disposed bool
}

// New builds and wires a chain in g.
func New(g *graph.Graph, opts ...Option) (*Chain, error) {
	o := options{smoothing: DefaultSmoothing}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := &Chain{
		g:         g,
		smoothing: o.smoothing,
		settings: Settings{
			Effects:         project.DefaultEffects(),
			DelayTime:       effects.DefaultEchoTime(),
			DelayFeedback:   effects.DefaultEchoFeedback(),
			FlangerFeedback: defaultFlangerFeedback,
		},
	}

	if err := c.build(o.impulse); err != nil {
		c.Dispose()
		return nil, err
	}

	return c, nil
}

func (c *Chain) node(kind graph.Kind, p graph.Params) (*graph.Node, error) {
	n, err := c.g.CreateNode(kind, p)
	if err != nil {
		return nil, fmt.Errorf("fxchain: %w", err)
	}

	c.nodes = append(c.nodes, n)

	return n, nil
}

func filterParams(t biquad.Type, freq, q float64) graph.Params {
	return graph.Params{Filter: t, Values: map[string]float64{"frequency": freq, "q": q}}
}

func gainParams(gain float64) graph.Params {
	return graph.Params{Values: map[string]float64{"gain": gain}}
}

//nolint:funlen
func (c *Chain) build(imp *reverb.Impulse) error {
	var err error

	steps := []struct {
		dst  **graph.Node
		kind graph.Kind
		p    graph.Params
	}{
		{&c.input, graph.KindGain, gainParams(1)},
		{&c.low, graph.KindFilter, filterParams(biquad.LowShelf, lowShelfHz, biquad.DefaultQ)},
		{&c.mid, graph.KindFilter, filterParams(biquad.Peaking, peakHz, peakQ)},
		{&c.high, graph.KindFilter, filterParams(biquad.HighShelf, highShelfHz, biquad.DefaultQ)},
		{&c.hp, graph.KindFilter, filterParams(biquad.Highpass, highpassInertHz, biquad.DefaultQ)},
		{&c.lp, graph.KindFilter, filterParams(biquad.Lowpass, lowpassInertHz, biquad.DefaultQ)},
		{&c.fx[SendReverb], graph.KindConvolver, graph.Params{Impulse: imp}},
		{&c.fx[SendDelay], graph.KindDelay, graph.Params{Values: map[string]float64{
			"delayTime": c.settings.DelayTime,
			"feedback":  c.settings.DelayFeedback,
		}}},
		{&c.fx[SendPhaser], graph.KindPhaser, graph.Params{}},
		{&c.fx[SendFlanger], graph.KindFlanger, graph.Params{Values: map[string]float64{
			"feedback": c.settings.FlangerFeedback,
		}}},
		{&c.comp, graph.KindCompressor, graph.Params{}},
		{&c.output, graph.KindGain, gainParams(1)},
	}

	for _, s := range steps {
		if *s.dst, err = c.node(s.kind, s.p); err != nil {
			return err
		}
	}

	for i := range c.sends {
		if c.sends[i], err = c.node(graph.KindGain, gainParams(0)); err != nil {
			return err
		}
	}

	edges := [][2]*graph.Node{
		{c.input, c.low},
		{c.low, c.mid},
		{c.mid, c.high},
		{c.high, c.hp},
		{c.hp, c.lp},
		{c.lp, c.comp},
		{c.comp, c.output},
	}

	for i := range c.sends {
		edges = append(edges,
			[2]*graph.Node{c.lp, c.sends[i]},
			[2]*graph.Node{c.sends[i], c.fx[i]},
			[2]*graph.Node{c.fx[i], c.comp},
		)
	}

	for _, e := range edges {
		if err := c.g.Connect(e[0], e[1]); err != nil {
			return fmt.Errorf("fxchain: connect %s -> %s: %w", e[0].Kind(), e[1].Kind(), err)
		}
	}

	return nil
}

// Input is the node clips connect into.
func (c *Chain) Input() *graph.Node { return c.input }

// Output is the node the track strip reads from.
func (c *Chain) Output() *graph.Node { return c.output }

// Settings returns the stored control state.
func (c *Chain) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.settings
}

// SetEQ sets the three band gains, clamped to ±20 dB.
func (c *Chain) SetEQ(eq project.EQSettings) {
	eq = eq.Clamp()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.settings.EQ = eq
	c.low.Param("gain").SetSmoothed(eq.Low, c.smoothing)
	c.mid.Param("gain").SetSmoothed(eq.Mid, c.smoothing)
	c.high.Param("gain").SetSmoothed(eq.High, c.smoothing)
}

// SetEffects sets the send levels and the filter.
func (c *Chain) SetEffects(fx project.EffectsSettings) {
	fx = fx.Clamp()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.settings.Effects = fx
	c.applySends()
	c.applyFilter()
}

// SetFilterBias sets the bias alone, clamped to [-100, 100].
func (c *Chain) SetFilterBias(bias float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	fx := c.settings.Effects
	fx.FilterBias = bias
	c.settings.Effects = fx.Clamp()
	c.applyFilter()
}

// SetDelayTime sets the echo time in seconds.
func (c *Chain) SetDelayTime(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.settings.DelayTime = effects.ClampTime(seconds)
	c.fx[SendDelay].Param("delayTime").SetSmoothed(c.settings.DelayTime, delayTimeSmoothing)
}

// SetDelayFeedback sets echo feedback, clamped to [0, 0.9].
func (c *Chain) SetDelayFeedback(fb float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.settings.DelayFeedback = clampFeedback(fb, MaxDelayFeedback)
	c.fx[SendDelay].Param("feedback").SetSmoothed(c.settings.DelayFeedback, c.smoothing)
}

// SetFlangerFeedback sets flanger feedback, clamped to [0, 0.95].
func (c *Chain) SetFlangerFeedback(fb float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.settings.FlangerFeedback = clampFeedback(fb, MaxFlangerFeedback)
	c.fx[SendFlanger].Param("feedback").SetSmoothed(c.settings.FlangerFeedback, c.smoothing)
}

// OverrideHighpass moves the highpass cutoff without touching the stored
// filter settings. Restore undoes it.
func (c *Chain) OverrideHighpass(hz, tc float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.hp.Param("frequency").SetSmoothed(hz, tc)
}

// OverrideDelay drives the delay send, feedback and time without touching
// the stored settings. Restore undoes it.
func (c *Chain) OverrideDelay(send, feedback, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.sends[SendDelay].Param("gain").SetSmoothed(core.Clamp(send, 0, 1), c.smoothing)
	c.fx[SendDelay].Param("feedback").SetSmoothed(clampFeedback(feedback, MaxDelayFeedback), c.smoothing)
	c.fx[SendDelay].Param("delayTime").SetSmoothed(effects.ClampTime(seconds), c.smoothing)
}

// Restore reapplies the stored settings after an override.
func (c *Chain) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.applySends()
	c.applyFilter()
	c.fx[SendDelay].Param("feedback").SetSmoothed(c.settings.DelayFeedback, c.smoothing)
	c.fx[SendDelay].Param("delayTime").SetSmoothed(c.settings.DelayTime, c.smoothing)
}

// Dispose removes every node from the graph. It is idempotent.
func (c *Chain) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	c.disposed = true
	for _, n := range c.nodes {
		c.g.Dispose(n)
	}
}

func (c *Chain) applySends() {
	fx := c.settings.Effects
	levels := [numSends]float64{fx.Reverb, fx.Delay, fx.Phaser, fx.Flanger}

	for i, level := range levels {
		c.sends[i].Param("gain").SetSmoothed(level/100, c.smoothing)
	}
}

func (c *Chain) applyFilter() {
	lp, hp := FilterCutoffs(c.settings.Effects)
	c.lp.Param("frequency").SetSmoothed(lp, c.smoothing)
	c.hp.Param("frequency").SetSmoothed(hp, c.smoothing)
}

// FilterCutoffs maps the filter bias, scaled by the filter intensity, to
// lowpass and highpass cutoffs. Negative bias sweeps the lowpass down from
// 20 kHz to 100 Hz; positive bias sweeps the highpass up from 20 Hz to
// 10 kHz. Both sweeps are logarithmic.
func FilterCutoffs(fx project.EffectsSettings) (lowpass, highpass float64) {
	fx = fx.Clamp()
	bias := fx.FilterBias * fx.Filter / 100

	switch {
	case bias < 0:
		return core.LogLerp(lowpassInertHz, lowpassSweepHz, -bias/100), highpassInertHz
	case bias > 0:
		return lowpassInertHz, core.LogLerp(highpassInertHz, highpassSweepHz, bias/100)
	default:
		return lowpassInertHz, highpassInertHz
	}
}

func clampFeedback(fb, limit float64) float64 {
	if math.IsNaN(fb) {
		return 0
	}

	return core.Clamp(fb, 0, limit)
}
