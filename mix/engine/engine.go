package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cwbudde/algo-mixer/dsp/effects/reverb"
	"github.com/cwbudde/algo-mixer/mix/clock"
	"github.com/cwbudde/algo-mixer/mix/crossfader"
	"github.com/cwbudde/algo-mixer/mix/events"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
	"github.com/cwbudde/algo-mixer/mix/scheduler"
	"github.com/cwbudde/algo-mixer/mix/trackmix"
)

// ErrDisposed is returned by control calls after Dispose.
var ErrDisposed = errors.New("engine: disposed")

// Engine is one mixing session.
type Engine struct {
	id       string
	cfg      Config
	clk      clockwork.Clock
	log      *slog.Logger
	provider scheduler.BufferProvider

	hub   *events.Hub
	clock *clock.SampleClock
	graph *graph.Graph
	mixer *trackmix.Mixer
	xf    *crossfader.Crossfader
	sched *scheduler.Scheduler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	disposed bool
}

// New builds a session and, unless ManualTick is set, starts the
// scheduler loop on the control clock.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		id:  uuid.NewString(),
		cfg: DefaultConfig(),
		clk: clockwork.NewRealClock(),
		log: slog.Default(),
		hub: events.NewHub(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if e.cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("engine: sample rate must be positive: %v", e.cfg.SampleRate)
	}

	e.log = e.log.With("session", e.id)

	imp, err := reverb.NewImpulse(e.cfg.SampleRate, reverb.WithDuration(e.cfg.ImpulseSeconds))
	if err != nil {
		return nil, fmt.Errorf("engine: reverb impulse: %w", err)
	}

	e.clock = clock.NewSampleClock(e.cfg.SampleRate)
	e.graph = graph.New(e.clock, e.cfg.BlockSize, graph.WithLogger(e.log))

	e.mixer, err = trackmix.New(e.graph, trackmix.WithLogger(e.log), trackmix.WithImpulse(imp))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	inputs := [2]*graph.Node{e.mixer.DeckOutput(project.DeckA), e.mixer.DeckOutput(project.DeckB)}

	e.xf, err = crossfader.New(e.graph, inputs, e.mixer.MasterInput(),
		crossfader.WithClock(e.clk),
		crossfader.WithLogger(e.log),
		crossfader.WithDeckEffects(e.mixer),
		crossfader.WithHub(e.hub),
		crossfader.WithSteps(e.cfg.TransitionSteps),
	)
	if err != nil {
		e.mixer.Dispose()
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.sched = scheduler.New(e.graph, e.provider, e.mixer,
		scheduler.WithClock(e.clk),
		scheduler.WithLogger(e.log),
		scheduler.WithHub(e.hub),
		scheduler.WithLookahead(e.cfg.Lookahead),
		scheduler.WithTickInterval(e.cfg.TickInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if !e.cfg.ManualTick {
		e.wg.Go(func() {
			if err := e.sched.Run(ctx); err != nil {
				e.log.Error("scheduler stopped", "error", err)
			}
		})
	}

	e.log.Info("engine started",
		"sampleRate", e.cfg.SampleRate, "blockSize", e.graph.BlockSize(), "manualTick", e.cfg.ManualTick)

	return e, nil
}

// ID returns the session id.
func (e *Engine) ID() string { return e.id }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// SampleRate returns the render rate.
func (e *Engine) SampleRate() float64 { return e.cfg.SampleRate }

// Events returns the session's event buses.
func (e *Engine) Events() *events.Hub { return e.hub }

// Render produces the next block of the master output. It is the only
// call of the real-time path.
func (e *Engine) Render(left, right []float64) {
	e.graph.Render(left, right)
}

// AudioTime returns the audio clock in seconds.
func (e *Engine) AudioTime() float64 { return e.clock.Now() }

// Tick runs one scheduler pass. Only needed with ManualTick.
func (e *Engine) Tick() { e.sched.Tick() }

// Load replaces the project. Playback stops; deck settings carry over.
func (e *Engine) Load(p *project.MixProject) error {
	if err := e.alive(); err != nil {
		return err
	}

	if p == nil {
		return scheduler.ErrNoProject
	}

	p = p.Clone()
	p.Normalize()

	if err := p.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// Sounding clips are routed into the strips the mixer is about to
	// replace, so they stop first.
	e.sched.Stop()

	if err := e.mixer.Load(p.Tracks); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if err := e.sched.Load(p); err != nil {
		return err
	}

	e.log.Info("project loaded", "projectId", p.ID, "tracks", len(p.Tracks), "duration", p.Duration())

	return nil
}

// Prefetch decodes every source of the loaded project ahead of playback.
func (e *Engine) Prefetch(ctx context.Context) error {
	if err := e.alive(); err != nil {
		return err
	}

	return e.sched.Prefetch(ctx)
}

// Play starts or resumes playback.
func (e *Engine) Play() error {
	if err := e.alive(); err != nil {
		return err
	}

	return e.sched.Play()
}

// Pause stops playback and keeps the position.
func (e *Engine) Pause() { e.sched.Pause() }

// Stop stops playback and rewinds.
func (e *Engine) Stop() { e.sched.Stop() }

// Seek moves the playhead to t seconds.
func (e *Engine) Seek(t float64) { e.sched.Seek(t) }

// CurrentTime returns the session position in seconds.
func (e *Engine) CurrentTime() float64 { return e.sched.CurrentTime() }

// IsPlaying reports whether the session is playing.
func (e *Engine) IsPlaying() bool { return e.sched.IsPlaying() }

// SetMasterVolume sets the master gain, clamped to [0, 1].
func (e *Engine) SetMasterVolume(v float64) { e.mixer.SetMasterVolume(v) }

// SetTrackSettings updates one track's strip.
func (e *Engine) SetTrackSettings(id string, volume, pan float64, muted, solo bool) error {
	return e.mixer.SetTrackSettings(id, volume, pan, muted, solo)
}

// SetCrossfaderPosition moves the crossfader, clamped to [-50, 50].
func (e *Engine) SetCrossfaderPosition(p float64) { e.xf.SetPosition(p) }

// SetChannelVolume sets a deck's channel fader, clamped to [0, 100].
func (e *Engine) SetChannelVolume(d project.DeckID, v float64) error {
	return e.xf.SetChannelVolume(d, v)
}

// SetCrossfaderCurve selects the blend curve.
func (e *Engine) SetCrossfaderCurve(c project.CrossfaderCurve) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", project.ErrUnknownCurve, c)
	}

	e.xf.SetCurve(c)

	return nil
}

// SetCutLag sets the crossfader smoothing in milliseconds, clamped to
// [0, 10].
func (e *Engine) SetCutLag(ms float64) { e.xf.SetCutLag(ms) }

// PerformTransition cancels any running transition and starts spec.
func (e *Engine) PerformTransition(spec project.TransitionSpec) error {
	if err := e.alive(); err != nil {
		return err
	}

	return e.xf.PerformTransition(spec)
}

// CancelTransition stops the running transition where it is.
func (e *Engine) CancelTransition() { e.xf.CancelTransition() }

// SetEQ applies EQ to every track on deck d.
func (e *Engine) SetEQ(d project.DeckID, eq project.EQSettings) error {
	return e.mixer.SetEQ(d, eq)
}

// SetEffects applies effect sends to every track on deck d.
func (e *Engine) SetEffects(d project.DeckID, fx project.EffectsSettings) error {
	return e.mixer.SetEffects(d, fx)
}

// SetDelayTime sets the echo time of deck d in seconds.
func (e *Engine) SetDelayTime(d project.DeckID, seconds float64) error {
	return e.mixer.SetDelayTime(d, seconds)
}

// SetDelayFeedback sets the echo feedback of deck d, clamped to 0.9.
func (e *Engine) SetDelayFeedback(d project.DeckID, fb float64) error {
	return e.mixer.SetDelayFeedback(d, fb)
}

// SetFlangerFeedback sets the flanger feedback of deck d, clamped to 0.95.
func (e *Engine) SetFlangerFeedback(d project.DeckID, fb float64) error {
	return e.mixer.SetFlangerFeedback(d, fb)
}

// Dispose stops the scheduler loop and any transition and removes every
// node. It is idempotent.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}

	e.disposed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()

	e.xf.Dispose()
	e.sched.Dispose()
	e.mixer.Dispose()

	e.log.Info("engine disposed", "droppedCommands", e.graph.Dropped())
}

func (e *Engine) alive() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}

	return nil
}
