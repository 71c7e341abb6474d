package project

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidClip is wrapped by every clip validation failure.
var ErrInvalidClip = errors.New("project: invalid clip")

// AudioClip is a trimmed slice of a source buffer placed on a track.
type AudioClip struct {
	ID        string  `yaml:"id" json:"id"`
	SourceID  string  `yaml:"sourceId" json:"sourceId"`
	StartTime float64 `yaml:"startTime" json:"startTime"`
	Duration  float64 `yaml:"duration" json:"duration"`
	TrimStart float64 `yaml:"trimStart,omitempty" json:"trimStart,omitempty"`
	TrimEnd   float64 `yaml:"trimEnd,omitempty" json:"trimEnd,omitempty"`
	FadeIn    float64 `yaml:"fadeIn,omitempty" json:"fadeIn,omitempty"`
	FadeOut   float64 `yaml:"fadeOut,omitempty" json:"fadeOut,omitempty"`
	Volume    float64 `yaml:"volume" json:"volume"`
}

// PlaybackLength is the audible length after trimming.
func (c AudioClip) PlaybackLength() float64 {
	return c.Duration - c.TrimStart - c.TrimEnd
}

// EndTime is the timeline position where playback stops.
func (c AudioClip) EndTime() float64 {
	return c.StartTime + c.PlaybackLength()
}

// ActiveAt reports whether t falls inside [StartTime, EndTime).
func (c AudioClip) ActiveAt(t float64) bool {
	return t >= c.StartTime && t < c.EndTime()
}

// Validate checks timing invariants. Fades longer than the playback length
// are accepted; the scheduler shortens them.
func (c AudioClip) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidClip)
	}

	for name, v := range map[string]float64{
		"startTime": c.StartTime,
		"duration":  c.Duration,
		"trimStart": c.TrimStart,
		"trimEnd":   c.TrimEnd,
		"fadeIn":    c.FadeIn,
		"fadeOut":   c.FadeOut,
		"volume":    c.Volume,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s: %s = %v", ErrInvalidClip, c.ID, name, v)
		}
	}

	if c.TrimStart+c.TrimEnd >= c.Duration {
		return fmt.Errorf("%w: %s: trimStart+trimEnd (%v) must be < duration (%v)",
			ErrInvalidClip, c.ID, c.TrimStart+c.TrimEnd, c.Duration)
	}

	return nil
}
