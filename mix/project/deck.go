package project

import (
	"errors"
	"strings"
)

// ErrUnknownDeck is returned for deck ids other than A and B.
var ErrUnknownDeck = errors.New("project: unknown deck")

// DeckID names one of the two decks.
type DeckID string

const (
	DeckA DeckID = "A"
	DeckB DeckID = "B"
)

// Decks lists both decks in crossfader order.
var Decks = [2]DeckID{DeckA, DeckB}

// ParseDeck accepts "a", "A", "b" or "B".
func ParseDeck(s string) (DeckID, error) {
	d := DeckID(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", ErrUnknownDeck
	}

	return d, nil
}

// Valid reports whether d is DeckA or DeckB.
func (d DeckID) Valid() bool { return d == DeckA || d == DeckB }

// Opposite returns the other deck.
func (d DeckID) Opposite() DeckID {
	if d == DeckA {
		return DeckB
	}

	return DeckA
}

// Index is 0 for A and 1 for B.
func (d DeckID) Index() int {
	if d == DeckB {
		return 1
	}

	return 0
}

// DeckForIndex maps even track indices to A and odd ones to B.
func DeckForIndex(i int) DeckID {
	if i%2 == 1 {
		return DeckB
	}

	return DeckA
}

// EQSettings are three-band gains in dB.
type EQSettings struct {
	Low  float64 `yaml:"low" json:"low"`
	Mid  float64 `yaml:"mid" json:"mid"`
	High float64 `yaml:"high" json:"high"`
}

// Clamp limits every band to [-20, 20] dB.
func (e EQSettings) Clamp() EQSettings {
	return EQSettings{
		Low:  clampFinite(e.Low, -20, 20),
		Mid:  clampFinite(e.Mid, -20, 20),
		High: clampFinite(e.High, -20, 20),
	}
}

// EffectsSettings are send levels in percent plus the filter bias.
// Filter is the intensity applied to FilterBias.
type EffectsSettings struct {
	Reverb     float64 `yaml:"reverb" json:"reverb"`
	Delay      float64 `yaml:"delay" json:"delay"`
	Filter     float64 `yaml:"filter" json:"filter"`
	Phaser     float64 `yaml:"phaser" json:"phaser"`
	Flanger    float64 `yaml:"flanger" json:"flanger"`
	FilterBias float64 `yaml:"filterBias" json:"filterBias"`
}

// DefaultEffects has every send dry and the filter at full intensity with
// a neutral bias.
func DefaultEffects() EffectsSettings {
	return EffectsSettings{Filter: 100}
}

// Clamp limits sends to [0, 100] and the bias to [-100, 100].
func (e EffectsSettings) Clamp() EffectsSettings {
	return EffectsSettings{
		Reverb:     clampFinite(e.Reverb, 0, 100),
		Delay:      clampFinite(e.Delay, 0, 100),
		Filter:     clampFinite(e.Filter, 0, 100),
		Phaser:     clampFinite(e.Phaser, 0, 100),
		Flanger:    clampFinite(e.Flanger, 0, 100),
		FilterBias: clampFinite(e.FilterBias, -100, 100),
	}
}

// DeckState is the engine-owned state of one deck.
type DeckState struct {
	Volume  float64         `yaml:"volume" json:"volume"`
	EQ      EQSettings      `yaml:"eq" json:"eq"`
	Effects EffectsSettings `yaml:"effects" json:"effects"`
}

// DefaultDeckState is a deck at full volume with flat EQ and dry sends.
func DefaultDeckState() DeckState {
	return DeckState{Volume: 100, Effects: DefaultEffects()}
}

// Clamp returns s with every field in range.
func (s DeckState) Clamp() DeckState {
	return DeckState{
		Volume:  clampFinite(s.Volume, 0, 100),
		EQ:      s.EQ.Clamp(),
		Effects: s.Effects.Clamp(),
	}
}
