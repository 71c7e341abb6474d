package engine

import (
	"github.com/cwbudde/algo-mixer/mix/project"
)

// Snapshot is a point-in-time copy of the session's control state.
type Snapshot struct {
	SessionID    string                               `json:"sessionId"`
	CurrentTime  float64                              `json:"currentTime"`
	AudioTime    float64                              `json:"audioTime"`
	Playing      bool                                 `json:"isPlaying"`
	MasterVolume float64                              `json:"masterVolume"`
	Crossfader   project.CrossfaderState              `json:"crossfader"`
	InTransition bool                                 `json:"inTransition"`
	Decks        map[project.DeckID]project.DeckState `json:"decks"`
	Tracks       []project.Track                      `json:"tracks"`
	Active       []string                             `json:"activeClips"`
}

// State returns a snapshot of the session. Deck volume mirrors the
// crossfader's channel fader.
func (e *Engine) State() Snapshot {
	xf := e.xf.State()

	decks := make(map[project.DeckID]project.DeckState, len(project.Decks))
	for _, d := range project.Decks {
		ds := e.mixer.DeckState(d)
		ds.Volume = xf.ChannelVolume(d)
		decks[d] = ds
	}

	return Snapshot{
		SessionID:    e.id,
		CurrentTime:  e.sched.CurrentTime(),
		AudioTime:    e.clock.Now(),
		Playing:      e.sched.IsPlaying(),
		MasterVolume: e.mixer.MasterVolume(),
		Crossfader:   xf,
		InTransition: e.xf.InTransition(),
		Decks:        decks,
		Tracks:       e.mixer.Tracks(),
		Active:       e.sched.Active(),
	}
}

// BlendGains returns the crossfader's current deck gains.
func (e *Engine) BlendGains() (a, b float64) { return e.xf.BlendGains() }
