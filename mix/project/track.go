package project

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// Track is an ordered lane of clips feeding one deck.
type Track struct {
	ID      string      `yaml:"id" json:"id"`
	Clips   []AudioClip `yaml:"clips" json:"clips"`
	Volume  float64     `yaml:"volume" json:"volume"`
	Pan     float64     `yaml:"pan,omitempty" json:"pan,omitempty"`
	IsMuted bool        `yaml:"muted,omitempty" json:"isMuted,omitempty"`
	IsSolo  bool        `yaml:"solo,omitempty" json:"isSolo,omitempty"`

	// Deck names the deck the track feeds. Empty assigns by track index.
	Deck DeckID `yaml:"deck,omitempty" json:"deck,omitempty"`
}

// SortClips orders clips by start time, keeping the order of equal starts.
func (t *Track) SortClips() {
	slices.SortStableFunc(t.Clips, func(a, b AudioClip) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		default:
			return 0
		}
	})
}

// Clamp limits volume to [0, 1] and pan to [-1, 1].
func (t *Track) Clamp() {
	t.Volume = clampFinite(t.Volume, 0, 1)
	t.Pan = clampFinite(t.Pan, -1, 1)
}

func clampFinite(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}

	return core.Clamp(v, lo, hi)
}
