package project

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownTransition is returned for unsupported transition types.
var ErrUnknownTransition = errors.New("project: unknown transition type")

// TransitionType names an automated transition technique.
type TransitionType string

const (
	TransitionCut      TransitionType = "cut"
	TransitionFade     TransitionType = "fade"
	TransitionBassSwap TransitionType = "bassSwap"
	TransitionEcho     TransitionType = "echo"
	TransitionSpinback TransitionType = "spinback"
	TransitionBackspin TransitionType = "backspin"
)

// DefaultBPM is assumed when a spec carries no tempo.
const DefaultBPM = 120.0

// TransitionSpec requests one transition. Duration is in seconds; Deck is
// the outgoing deck and may be empty to infer it from the crossfader.
type TransitionSpec struct {
	Type     TransitionType `yaml:"type" json:"type"`
	Duration float64        `yaml:"duration" json:"duration"`
	Deck     DeckID         `yaml:"deck,omitempty" json:"deck,omitempty"`
	BPM      float64        `yaml:"bpm,omitempty" json:"bpm,omitempty"`
}

// Validate checks the type, deck and duration.
func (s TransitionSpec) Validate() error {
	switch s.Type {
	case TransitionCut, TransitionFade, TransitionBassSwap,
		TransitionEcho, TransitionSpinback, TransitionBackspin:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransition, s.Type)
	}

	if s.Deck != "" && !s.Deck.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDeck, s.Deck)
	}

	if s.Duration < 0 || math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("project: transition duration must be >= 0: %v", s.Duration)
	}

	return nil
}

// Tempo returns BPM, or DefaultBPM when unset.
func (s TransitionSpec) Tempo() float64 {
	if s.BPM <= 0 || math.IsNaN(s.BPM) {
		return DefaultBPM
	}

	return s.BPM
}

// BeatSeconds returns the length of one beat.
func (s TransitionSpec) BeatSeconds() float64 {
	return 60 / s.Tempo()
}
