package engine

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cwbudde/algo-mixer/mix/crossfader"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/scheduler"
)

// Config holds the engine settings.
type Config struct {
	SampleRate      float64
	BlockSize       int
	Lookahead       float64
	TickInterval    time.Duration
	TransitionSteps int
	// ImpulseSeconds is the length of the shared reverb response.
	ImpulseSeconds float64
	// ManualTick disables the scheduler loop; the caller ticks through
	// Engine.Tick, as offline rendering does.
	ManualTick bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:      48000,
		BlockSize:       graph.DefaultBlockSize,
		Lookahead:       scheduler.DefaultLookahead,
		TickInterval:    scheduler.DefaultTickInterval,
		TransitionSteps: crossfader.DefaultFadeSteps,
		ImpulseSeconds:  2,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithSampleRate sets the render rate in Hz.
func WithSampleRate(sr float64) Option {
	return func(e *Engine) {
		if sr > 0 {
			e.cfg.SampleRate = sr
		}
	}
}

// WithBlockSize sets the render quantum in frames.
func WithBlockSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cfg.BlockSize = n
		}
	}
}

// WithLookahead sets the scheduling window in seconds.
func WithLookahead(seconds float64) Option {
	return func(e *Engine) {
		if seconds > 0 {
			e.cfg.Lookahead = seconds
		}
	}
}

// WithTickInterval sets the scheduler period.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cfg.TickInterval = d
		}
	}
}

// WithTransitionSteps sets the number of steps of a fade.
func WithTransitionSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cfg.TransitionSteps = n
		}
	}
}

// WithImpulseDuration sets the reverb response length in seconds.
func WithImpulseDuration(seconds float64) Option {
	return func(e *Engine) {
		if seconds > 0 {
			e.cfg.ImpulseSeconds = seconds
		}
	}
}

// ManualTick makes the caller responsible for scheduler ticks.
func ManualTick() Option {
	return func(e *Engine) { e.cfg.ManualTick = true }
}

// WithControlClock sets the clock of the control timeline: scheduler
// ticks and transition steps.
func WithControlClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clk = c
		}
	}
}

// WithLogger sets the logger of every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithBufferProvider sets where clip audio comes from.
func WithBufferProvider(p scheduler.BufferProvider) Option {
	return func(e *Engine) { e.provider = p }
}
