package crossfader

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/mix/project"
)

// Transition constants.
const (
	DefaultFadeSteps = 60

	bassSwapStartHz = 20.0
	bassSwapEndHz   = 200.0

	echoFeedback      = 0.6
	echoBeats         = 3.0 / 8
	echoTail          = 2 * time.Second
	echoTailSteps     = 20
	backspinDuration  = 200 * time.Millisecond
	backspinJumpCount = 4
)

// Touch flags the parameters a Frame sets.
type Touch uint8

const (
	TouchPosition Touch = 1 << iota
	TouchGain
	TouchHighpass
	TouchEcho
)

// Echo is the delay-send state of the outgoing deck.
type Echo struct {
	Send     float64
	Feedback float64
	Delay    float64
}

// Frame is one set of parameter values. Only fields flagged in Touches are
// applied; Restore returns the outgoing deck's effects to their stored
// settings.
type Frame struct {
	Position float64
	Gain     float64
	Highpass float64
	Echo     Echo
	Touches  Touch
	Restore  bool
}

// Phase samples At at progress k/Steps for k = 1..Steps, evenly spread over
// Duration.
type Phase struct {
	Steps    int
	Duration time.Duration
	At       func(p float64) Frame
}

// Plan is a full transition.
type Plan struct {
	Deck   project.DeckID
	Phases []Phase
	// Final is applied once every phase completed; it is skipped when the
	// transition is cancelled.
	Final *Frame
}

// OutgoingDeck returns spec.Deck, or the deck the crossfader currently
// favors when the spec leaves it empty.
func OutgoingDeck(spec project.TransitionSpec, position float64) project.DeckID {
	if spec.Deck.Valid() {
		return spec.Deck
	}

	if position > 0 {
		return project.DeckB
	}

	return project.DeckA
}

// Extreme is the crossfader position that isolates deck d.
func Extreme(d project.DeckID) float64 {
	if d == project.DeckB {
		return project.MaxPosition
	}

	return project.MinPosition
}

// NewPlan builds the plan for spec starting at position from. steps is the
// step count of fades.
//
//nolint:funlen
func NewPlan(spec project.TransitionSpec, from float64, steps int) (Plan, error) {
	if err := spec.Validate(); err != nil {
		return Plan{}, err
	}

	if steps <= 0 {
		steps = DefaultFadeSteps
	}

	deck := OutgoingDeck(spec, from)
	home := project.ClampPosition(from)
	target := Extreme(deck.Opposite())
	duration := time.Duration(spec.Duration * float64(time.Second))

	fade := func(p float64) float64 { return core.Lerp(home, target, p) }

	plan := Plan{Deck: deck}

	switch spec.Type {
	case project.TransitionCut:
		plan.Phases = []Phase{{
			Steps: 1,
			At: func(float64) Frame {
				return Frame{Position: target, Touches: TouchPosition}
			},
		}}

	case project.TransitionFade:
		plan.Phases = []Phase{{
			Steps:    steps,
			Duration: duration,
			At: func(p float64) Frame {
				return Frame{Position: fade(p), Touches: TouchPosition}
			},
		}}

	case project.TransitionBassSwap:
		plan.Phases = []Phase{{
			Steps:    steps,
			Duration: duration,
			At: func(p float64) Frame {
				hp := bassSwapEndHz
				if p < 0.5 {
					hp = core.LogLerp(bassSwapStartHz, bassSwapEndHz, p/0.5)
				}

				return Frame{Position: fade(p), Highpass: hp, Touches: TouchPosition | TouchHighpass}
			},
		}}
		plan.Final = &Frame{Highpass: bassSwapStartHz, Touches: TouchHighpass, Restore: true}

	case project.TransitionEcho:
		echo := Echo{Send: 1, Feedback: echoFeedback, Delay: echoBeats * spec.BeatSeconds()}
		plan.Phases = []Phase{
			{
				Steps:    steps,
				Duration: duration,
				At: func(p float64) Frame {
					return Frame{Position: fade(p), Echo: echo, Touches: TouchPosition | TouchEcho}
				},
			},
			{
				Steps:    echoTailSteps,
				Duration: echoTail,
				At: func(p float64) Frame {
					tail := echo
					tail.Feedback = echoFeedback * (1 - p)

					return Frame{Echo: tail, Touches: TouchEcho}
				},
			},
		}
		plan.Final = &Frame{Restore: true}

	case project.TransitionSpinback:
		plan.Phases = []Phase{{
			Steps:    steps,
			Duration: duration,
			At: func(p float64) Frame {
				return Frame{Position: fade(p), Gain: 1 - p, Touches: TouchPosition | TouchGain}
			},
		}}
		plan.Final = &Frame{Gain: 1, Touches: TouchGain}

	case project.TransitionBackspin:
		plan.Phases = []Phase{{
			Steps:    backspinJumpCount,
			Duration: backspinDuration,
			At: func(p float64) Frame {
				pos := home
				if int(math.Round(p*backspinJumpCount))%2 == 1 {
					pos = target
				}

				return Frame{Position: pos, Touches: TouchPosition}
			},
		}}

	default:
		return Plan{}, fmt.Errorf("%w: %q", project.ErrUnknownTransition, spec.Type)
	}

	return plan, nil
}
