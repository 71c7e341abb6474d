package crossfader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/mix/events"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
)

const (
	// ChannelSmoothing is the channel-volume time constant.
	ChannelSmoothing = 0.010
	// EffectSmoothing smooths transition moves of deck gain and filter.
	EffectSmoothing = 0.010
)

// ErrDisposed is returned by PerformTransition after Dispose.
var ErrDisposed = errors.New("crossfader: disposed")

// DeckEffects gives transitions access to the outgoing deck's trim gain,
// highpass and delay send without exposing graph nodes.
type DeckEffects interface {
	SetDeckGain(d project.DeckID, gain, tc float64)
	SetTransitionHighpass(d project.DeckID, hz, tc float64)
	SetEcho(d project.DeckID, send, feedback, delaySeconds float64)
	RestoreEffects(d project.DeckID)
}

type noEffects struct{}

func (noEffects) SetDeckGain(project.DeckID, float64, float64) {}
func (noEffects) SetTransitionHighpass(project.DeckID, float64, float64) {}
func (noEffects) SetEcho(project.DeckID, float64, float64, float64) {}
func (noEffects) RestoreEffects(project.DeckID) {}

// Option configures a Crossfader.
type Option func(*Crossfader)

// WithClock sets the clock that paces transition steps.
func WithClock(c clockwork.Clock) Option {
	return func(x *Crossfader) {
		if c != nil {
			x.clk = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Crossfader) {
		if l != nil {
			x.log = l
		}
	}
}

// WithDeckEffects connects transitions to the decks' effects.
func WithDeckEffects(fx DeckEffects) Option {
	return func(x *Crossfader) {
		if fx != nil {
			x.fx = fx
		}
	}
}

// WithHub publishes TransitionCompleted events on h.
func WithHub(h *events.Hub) Option {
	return func(x *Crossfader) {
		if h != nil {
			x.hub = h
		}
	}
}

// WithSteps sets the step count of fades.
func WithSteps(n int) Option {
	return func(x *Crossfader) {
		if n > 0 {
			x.steps = n
		}
	}
}

// WithState sets the initial state.
func WithState(s project.CrossfaderState) Option {
	return func(x *Crossfader) { x.state = s.Clamp() }
}

type run struct {
	spec   project.TransitionSpec
	cancel context.CancelFunc
	done   chan struct{}
}

// Crossfader owns the per-deck channel and blend gains.
type Crossfader struct {
	g     *graph.Graph
	clk   clockwork.Clock
	log   *slog.Logger
	fx    DeckEffects
	hub   *events.Hub
	steps int

	channel [2]*graph.Node
	blend   [2]*graph.Node

	mu       sync.Mutex
	state    project.CrossfaderState
	disposed bool

	// tmu serializes transition start and cancellation.
	tmu sync.Mutex
	cur *run
}

// New creates the gain stages of both decks in g and wires
// inputs[deck] -> channel volume -> blend -> output.
func New(g *graph.Graph, inputs [2]*graph.Node, output *graph.Node, opts ...Option) (*Crossfader, error) {
	x := &Crossfader{
		g:     g,
		clk:   clockwork.NewRealClock(),
		log:   slog.Default(),
		fx:    noEffects{},
		hub:   events.NewHub(),
		steps: DefaultFadeSteps,
		state: project.DefaultCrossfaderState(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}

	a, b := Gains(x.state.Curve, x.state.Position)
	blend := [2]float64{a, b}

	for i, d := range project.Decks {
		var err error

		x.channel[i], err = g.CreateNode(graph.KindGain, graph.Params{Values: map[string]float64{
			"gain": x.state.ChannelVolume(d) / 100,
		}})
		if err != nil {
			x.Dispose()
			return nil, fmt.Errorf("crossfader: %w", err)
		}

		x.blend[i], err = g.CreateNode(graph.KindGain, graph.Params{Values: map[string]float64{"gain": blend[i]}})
		if err != nil {
			x.Dispose()
			return nil, fmt.Errorf("crossfader: %w", err)
		}

		for _, e := range [][2]*graph.Node{{inputs[i], x.channel[i]}, {x.channel[i], x.blend[i]}, {x.blend[i], output}} {
			if err := g.Connect(e[0], e[1]); err != nil {
				x.Dispose()
				return nil, fmt.Errorf("crossfader: %w", err)
			}
		}
	}

	return x, nil
}

// State returns a copy of the current state. Position is the last value
// applied, which during a transition is the last step.
func (x *Crossfader) State() project.CrossfaderState {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.state
}

// Position returns the last applied position.
func (x *Crossfader) Position() float64 {
	return x.State().Position
}

// BlendGains returns the rendered deck A and deck B blend gains.
func (x *Crossfader) BlendGains() (a, b float64) {
	return x.blend[0].Param("gain").Value(), x.blend[1].Param("gain").Value()
}

// SetPosition moves the crossfader, clamped to [-50, 50].
func (x *Crossfader) SetPosition(p float64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.state.Position = project.ClampPosition(p)
	x.applyBlend()
}

// SetCurve switches the curve. Unknown curves are ignored.
func (x *Crossfader) SetCurve(c project.CrossfaderCurve) {
	if !c.Valid() {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.state.Curve = c
	x.applyBlend()
}

// SetCutLag sets the position smoothing in ms, clamped to [0, 10].
func (x *Crossfader) SetCutLag(ms float64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	s := x.state
	s.CutLag = ms
	x.state = s.Clamp()
}

// SetChannelVolume sets a deck's channel volume, clamped to [0, 100].
func (x *Crossfader) SetChannelVolume(d project.DeckID, v float64) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", project.ErrUnknownDeck, d)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	v = core.Clamp(v, 0, 100)
	if d == project.DeckA {
		x.state.ChannelAVolume = v
	} else {
		x.state.ChannelBVolume = v
	}

	x.channel[d.Index()].Param("gain").SetSmoothed(v/100, ChannelSmoothing)

	return nil
}

func (x *Crossfader) applyBlend() {
	a, b := Gains(x.state.Curve, x.state.Position)
	lag := x.state.CutLag / 1000

	for i, g := range [2]float64{a, b} {
		p := x.blend[i].Param("gain")
		if lag <= 0 {
			p.SetImmediate(g)
			continue
		}

		p.SetSmoothed(g, lag)
	}
}

// PerformTransition cancels any running transition, leaving its last
// applied values in place, and starts spec from the current position.
// Completion, or cancellation, is published as TransitionCompleted from
// the transition goroutine; handlers must not call PerformTransition
// synchronously.
func (x *Crossfader) PerformTransition(spec project.TransitionSpec) error {
	x.tmu.Lock()
	defer x.tmu.Unlock()

	x.mu.Lock()
	disposed := x.disposed
	x.mu.Unlock()

	if disposed {
		return ErrDisposed
	}

	x.cancelLocked()

	plan, err := NewPlan(spec, x.Position(), x.steps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{spec: spec, cancel: cancel, done: make(chan struct{})}
	x.cur = r

	x.log.Debug("transition started", "type", spec.Type, "duration", spec.Duration, "deck", plan.Deck)

	go x.execute(ctx, r, plan)

	return nil
}

// CancelTransition stops the running transition, if any, and waits for it
// to exit.
func (x *Crossfader) CancelTransition() {
	x.tmu.Lock()
	defer x.tmu.Unlock()

	x.cancelLocked()
}

// InTransition reports whether a transition is running.
func (x *Crossfader) InTransition() bool {
	x.tmu.Lock()
	defer x.tmu.Unlock()

	if x.cur == nil {
		return false
	}

	select {
	case <-x.cur.done:
		return false
	default:
		return true
	}
}

func (x *Crossfader) cancelLocked() {
	if x.cur == nil {
		return
	}

	x.cur.cancel()
	<-x.cur.done
	x.cur = nil
}

func (x *Crossfader) execute(ctx context.Context, r *run, plan Plan) {
	defer close(r.done)
	defer r.cancel()

	cancelled := !x.runPlan(ctx, plan)
	if !cancelled && plan.Final != nil {
		x.apply(plan.Deck, *plan.Final)
	}

	x.log.Debug("transition completed", "type", r.spec.Type, "cancelled", cancelled)
	x.hub.TransitionCompleted.Publish(events.TransitionCompleted{Spec: r.spec, Cancelled: cancelled})
}

// runPlan steps through every phase and reports whether it finished.
func (x *Crossfader) runPlan(ctx context.Context, plan Plan) bool {
	start := x.clk.Now()

	for _, ph := range plan.Phases {
		steps := max(ph.Steps, 1)
		interval := ph.Duration / time.Duration(steps)

		for k := 1; k <= steps; k++ {
			deadline := start.Add(interval * time.Duration(k))
			if !x.wait(ctx, deadline) {
				return false
			}

			x.apply(plan.Deck, ph.At(float64(k)/float64(steps)))
		}

		start = start.Add(ph.Duration)
	}

	return true
}

func (x *Crossfader) wait(ctx context.Context, deadline time.Time) bool {
	if d := deadline.Sub(x.clk.Now()); d > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-x.clk.After(d):
		}
	}

	return ctx.Err() == nil
}

func (x *Crossfader) apply(deck project.DeckID, f Frame) {
	if f.Touches&TouchPosition != 0 {
		x.SetPosition(f.Position)
	}

	if f.Touches&TouchGain != 0 {
		x.fx.SetDeckGain(deck, f.Gain, EffectSmoothing)
	}

	if f.Touches&TouchHighpass != 0 {
		x.fx.SetTransitionHighpass(deck, f.Highpass, EffectSmoothing)
	}

	if f.Touches&TouchEcho != 0 {
		x.fx.SetEcho(deck, f.Echo.Send, f.Echo.Feedback, f.Echo.Delay)
	}

	if f.Restore {
		x.fx.RestoreEffects(deck)
	}
}

// Dispose cancels any transition and removes the gain stages. It is
// idempotent.
func (x *Crossfader) Dispose() {
	x.tmu.Lock()
	x.cancelLocked()
	x.tmu.Unlock()

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.disposed {
		return
	}

	x.disposed = true
	for i := range x.channel {
		x.g.Dispose(x.channel[i])
		x.g.Dispose(x.blend[i])
	}
}
