package project

import (
	"errors"
	"fmt"
)

// ErrDuplicateID is returned when two tracks or two clips share an id.
var ErrDuplicateID = errors.New("project: duplicate id")

// MixProject is a snapshot of the timeline.
type MixProject struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name,omitempty" json:"name,omitempty"`
	Tracks []Track `yaml:"tracks" json:"tracks"`
}

// ClipRef locates a clip on its track.
type ClipRef struct {
	Track int
	Clip  AudioClip
}

// Duration is the end time of the last clip across all tracks.
func (p *MixProject) Duration() float64 {
	var end float64

	for _, tr := range p.Tracks {
		for _, c := range tr.Clips {
			end = max(end, c.EndTime())
		}
	}

	return end
}

// Normalize sorts every track's clips, clamps track settings and assigns
// decks to tracks that do not name one.
func (p *MixProject) Normalize() {
	for i := range p.Tracks {
		tr := &p.Tracks[i]
		tr.SortClips()
		tr.Clamp()

		if tr.Deck == "" {
			tr.Deck = DeckForIndex(i)
		}
	}
}

// Validate checks every clip and id uniqueness.
func (p *MixProject) Validate() error {
	tracks := make(map[string]struct{}, len(p.Tracks))
	clips := make(map[string]struct{})

	for _, tr := range p.Tracks {
		if _, dup := tracks[tr.ID]; dup || tr.ID == "" {
			return fmt.Errorf("%w: track %q", ErrDuplicateID, tr.ID)
		}

		tracks[tr.ID] = struct{}{}

		if tr.Deck != "" && !tr.Deck.Valid() {
			return fmt.Errorf("track %s: %w: %q", tr.ID, ErrUnknownDeck, tr.Deck)
		}

		for _, c := range tr.Clips {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("track %s: %w", tr.ID, err)
			}

			if _, dup := clips[c.ID]; dup {
				return fmt.Errorf("%w: clip %q", ErrDuplicateID, c.ID)
			}

			clips[c.ID] = struct{}{}
		}
	}

	return nil
}

// ClipsInWindow returns clips whose start time lies in [from, to).
func (p *MixProject) ClipsInWindow(from, to float64) []ClipRef {
	var out []ClipRef

	for i, tr := range p.Tracks {
		for _, c := range tr.Clips {
			if c.StartTime >= from && c.StartTime < to {
				out = append(out, ClipRef{Track: i, Clip: c})
			}
		}
	}

	return out
}

// ClipsActiveAt returns clips sounding at t.
func (p *MixProject) ClipsActiveAt(t float64) []ClipRef {
	var out []ClipRef

	for i, tr := range p.Tracks {
		for _, c := range tr.Clips {
			if c.ActiveAt(t) {
				out = append(out, ClipRef{Track: i, Clip: c})
			}
		}
	}

	return out
}

// Track returns the track with the given id.
func (p *MixProject) Track(id string) (*Track, bool) {
	for i := range p.Tracks {
		if p.Tracks[i].ID == id {
			return &p.Tracks[i], true
		}
	}

	return nil, false
}

// Clone returns a deep copy.
func (p *MixProject) Clone() *MixProject {
	out := &MixProject{ID: p.ID, Name: p.Name, Tracks: make([]Track, len(p.Tracks))}
	for i, tr := range p.Tracks {
		out.Tracks[i] = tr
		out.Tracks[i].Clips = append([]AudioClip(nil), tr.Clips...)
	}

	return out
}
