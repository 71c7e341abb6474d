package trackmix

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/effects/reverb"
	"github.com/cwbudde/algo-mixer/mix/fxchain"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
)

// VolumeSmoothing is the time constant for track and master volume.
const VolumeSmoothing = 0.010

// Master compressor settings. It only catches peaks of the summed decks.
const (
	masterThresholdDB = -3.0
	masterRatio       = 4.0
	masterKneeDB      = 6.0
)

var (
	// ErrUnknownTrack is returned for track ids that are not loaded.
	ErrUnknownTrack = errors.New("trackmix: unknown track")
	// ErrDisposed is returned by Load after Dispose.
	ErrDisposed = errors.New("trackmix: disposed")
)

// Option configures a Mixer.
type Option func(*Mixer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mixer) {
		if l != nil {
			m.log = l
		}
	}
}

// WithImpulse shares a reverb impulse between every track chain.
func WithImpulse(imp *reverb.Impulse) Option {
	return func(m *Mixer) { m.impulse = imp }
}

type strip struct {
	track project.Track
	chain *fxchain.Chain
	gain  *graph.Node
	pan   *graph.Node
}

type deck struct {
	bus   *graph.Node
	trim  *graph.Node
	state project.DeckState
}

// Mixer owns track strips, deck buses and the master bus.
type Mixer struct {
	g       *graph.Graph
	log     *slog.Logger
	impulse *reverb.Impulse

	master     *graph.Node
	masterComp *graph.Node

	mu       sync.Mutex
	volume   float64
	strips   map[string]*strip
	order    []string
	decks    [2]*deck
	disposed bool
}

// New creates the deck and master buses in g.
func New(g *graph.Graph, opts ...Option) (*Mixer, error) {
	m := &Mixer{
		g:      g,
		log:    slog.Default(),
		strips: make(map[string]*strip),
		volume: 1,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if err := m.build(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Mixer) build() error {
	var err error

	unity := graph.Params{Values: map[string]float64{"gain": 1}}

	if m.master, err = m.g.CreateNode(graph.KindGain, unity); err != nil {
		return fmt.Errorf("trackmix: master: %w", err)
	}

	m.masterComp, err = m.g.CreateNode(graph.KindCompressor, graph.Params{Values: map[string]float64{
		"threshold": masterThresholdDB,
		"ratio":     masterRatio,
		"knee":      masterKneeDB,
	}})
	if err != nil {
		return fmt.Errorf("trackmix: master compressor: %w", err)
	}

	if err := m.g.Connect(m.master, m.masterComp); err != nil {
		return fmt.Errorf("trackmix: %w", err)
	}

	if err := m.g.Connect(m.masterComp, m.g.Destination()); err != nil {
		return fmt.Errorf("trackmix: %w", err)
	}

	for i := range m.decks {
		d := &deck{state: project.DefaultDeckState()}

		if d.bus, err = m.g.CreateNode(graph.KindGain, unity); err != nil {
			return fmt.Errorf("trackmix: deck bus: %w", err)
		}

		if d.trim, err = m.g.CreateNode(graph.KindGain, unity); err != nil {
			return fmt.Errorf("trackmix: deck trim: %w", err)
		}

		if err := m.g.Connect(d.bus, d.trim); err != nil {
			return fmt.Errorf("trackmix: %w", err)
		}

		m.decks[i] = d
	}

	return nil
}

// DeckOutput is the post-trim output of a deck.
func (m *Mixer) DeckOutput(d project.DeckID) *graph.Node {
	return m.decks[d.Index()].trim
}

// MasterInput is the summing point of the master bus.
func (m *Mixer) MasterInput() *graph.Node { return m.master }

// Load replaces every track strip with strips for tracks. Deck EQ and
// effects carry over to the new chains. On error the previous strips are
// kept.
func (m *Mixer) Load(tracks []project.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return ErrDisposed
	}

	strips := make(map[string]*strip, len(tracks))
	order := make([]string, 0, len(tracks))

	for i, tr := range tracks {
		tr.Clamp()

		if !tr.Deck.Valid() {
			tr.Deck = project.DeckForIndex(i)
		}

		s, err := m.newStrip(tr)
		if err != nil {
			for _, id := range order {
				strips[id].dispose(m.g)
			}

			return fmt.Errorf("trackmix: track %s: %w", tr.ID, err)
		}

		strips[tr.ID] = s
		order = append(order, tr.ID)
	}

	// The previous strips stay in place until every new one is built.
	m.clearStrips()
	m.strips = strips
	m.order = order

	m.applyEffective()
	m.log.Debug("tracks loaded", "tracks", len(m.order))

	return nil
}

func (m *Mixer) newStrip(tr project.Track) (*strip, error) {
	chain, err := fxchain.New(m.g, fxchain.WithImpulse(m.impulse))
	if err != nil {
		return nil, err
	}

	s := &strip{track: tr, chain: chain}

	fail := func(err error) (*strip, error) {
		s.dispose(m.g)
		return nil, err
	}

	if s.gain, err = m.g.CreateNode(graph.KindGain, graph.Params{Values: map[string]float64{"gain": 0}}); err != nil {
		return fail(err)
	}

	if s.pan, err = m.g.CreateNode(graph.KindPanner, graph.Params{Values: map[string]float64{"pan": tr.Pan}}); err != nil {
		return fail(err)
	}

	d := m.decks[tr.Deck.Index()]
	for _, e := range [][2]*graph.Node{{chain.Output(), s.gain}, {s.gain, s.pan}, {s.pan, d.bus}} {
		if err := m.g.Connect(e[0], e[1]); err != nil {
			return fail(err)
		}
	}

	chain.SetEQ(d.state.EQ)
	chain.SetEffects(d.state.Effects)

	return s, nil
}

func (s *strip) dispose(g *graph.Graph) {
	s.chain.Dispose()
	g.Dispose(s.gain)
	g.Dispose(s.pan)
}

func (m *Mixer) clearStrips() {
	for _, id := range m.order {
		m.strips[id].dispose(m.g)
	}

	clear(m.strips)
	m.order = m.order[:0]
}

// TrackInput returns the chain input of a track, for clip routing.
func (m *Mixer) TrackInput(trackID string) (*graph.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.strips[trackID]
	if !ok {
		return nil, false
	}

	return s.chain.Input(), true
}

// SetTrackSettings updates one track and recomputes every effective gain.
func (m *Mixer) SetTrackSettings(id string, volume, pan float64, muted, solo bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.strips[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTrack, id)
	}

	s.track.Volume = volume
	s.track.Pan = pan
	s.track.IsMuted = muted
	s.track.IsSolo = solo
	s.track.Clamp()

	s.pan.Param("pan").SetSmoothed(s.track.Pan, VolumeSmoothing)
	m.applyEffective()

	return nil
}

func (m *Mixer) applyEffective() {
	tracks := make([]project.Track, 0, len(m.order))
	for _, id := range m.order {
		tracks = append(tracks, m.strips[id].track)
	}

	for id, g := range Effective(tracks) {
		m.strips[id].gain.Param("gain").SetSmoothed(g, VolumeSmoothing)
	}
}

// Tracks returns the current track settings in load order, without clips.
func (m *Mixer) Tracks() []project.Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]project.Track, 0, len(m.order))
	for _, id := range m.order {
		tr := m.strips[id].track
		tr.Clips = nil
		out = append(out, tr)
	}

	return out
}

// SetEQ applies eq to every track on deck d.
func (m *Mixer) SetEQ(d project.DeckID, eq project.EQSettings) error {
	return m.onDeck(d, func(dk *deck, chains []*fxchain.Chain) {
		dk.state.EQ = eq.Clamp()
		for _, c := range chains {
			c.SetEQ(dk.state.EQ)
		}
	})
}

// SetEffects applies fx to every track on deck d.
func (m *Mixer) SetEffects(d project.DeckID, fx project.EffectsSettings) error {
	return m.onDeck(d, func(dk *deck, chains []*fxchain.Chain) {
		dk.state.Effects = fx.Clamp()
		for _, c := range chains {
			c.SetEffects(dk.state.Effects)
		}
	})
}

// SetDelayFeedback sets echo feedback on every track of deck d.
func (m *Mixer) SetDelayFeedback(d project.DeckID, fb float64) error {
	return m.onDeck(d, func(_ *deck, chains []*fxchain.Chain) {
		for _, c := range chains {
			c.SetDelayFeedback(fb)
		}
	})
}

// SetDelayTime sets the echo time on every track of deck d.
func (m *Mixer) SetDelayTime(d project.DeckID, seconds float64) error {
	return m.onDeck(d, func(_ *deck, chains []*fxchain.Chain) {
		for _, c := range chains {
			c.SetDelayTime(seconds)
		}
	})
}

// SetFlangerFeedback sets flanger feedback on every track of deck d.
func (m *Mixer) SetFlangerFeedback(d project.DeckID, fb float64) error {
	return m.onDeck(d, func(_ *deck, chains []*fxchain.Chain) {
		for _, c := range chains {
			c.SetFlangerFeedback(fb)
		}
	})
}

// DeckState returns the stored EQ and effects of deck d.
func (m *Mixer) DeckState(d project.DeckID) project.DeckState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.decks[d.Index()].state
}

// SetMasterVolume sets the master gain, clamped to [0, 1].
func (m *Mixer) SetMasterVolume(v float64) {
	v = core.Clamp(v, 0, 1)

	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()

	m.master.Param("gain").SetSmoothed(v, VolumeSmoothing)
}

// MasterVolume returns the last master volume set. The rendered gain
// approaches it with VolumeSmoothing.
func (m *Mixer) MasterVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.volume
}

// SetDeckGain drives the trim gain of deck d.
func (m *Mixer) SetDeckGain(d project.DeckID, gain, tc float64) {
	m.decks[d.Index()].trim.Param("gain").SetSmoothed(core.Clamp(gain, 0, 1), tc)
}

// SetTransitionHighpass moves the highpass of every chain on deck d
// without changing the stored effects.
func (m *Mixer) SetTransitionHighpass(d project.DeckID, hz, tc float64) {
	_ = m.onDeck(d, func(_ *deck, chains []*fxchain.Chain) {
		for _, c := range chains {
			c.OverrideHighpass(hz, tc)
		}
	})
}

// SetEcho drives the delay send of every chain on deck d without changing
// the stored effects.
func (m *Mixer) SetEcho(d project.DeckID, send, feedback, delaySeconds float64) {
	_ = m.onDeck(d, func(_ *deck, chains []*fxchain.Chain) {
		for _, c := range chains {
			c.OverrideDelay(send, feedback, delaySeconds)
		}
	})
}

// RestoreEffects undoes transition overrides on deck d.
func (m *Mixer) RestoreEffects(d project.DeckID) {
	_ = m.onDeck(d, func(_ *deck, chains []*fxchain.Chain) {
		for _, c := range chains {
			c.Restore()
		}
	})
}

func (m *Mixer) onDeck(d project.DeckID, fn func(*deck, []*fxchain.Chain)) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", project.ErrUnknownDeck, d)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var chains []*fxchain.Chain

	for _, id := range m.order {
		if s := m.strips[id]; s.track.Deck == d {
			chains = append(chains, s.chain)
		}
	}

	fn(m.decks[d.Index()], chains)

	return nil
}

// Dispose removes every node the mixer created. It is idempotent.
func (m *Mixer) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return
	}

	m.disposed = true
	m.clearStrips()

	for _, d := range m.decks {
		if d == nil {
			continue
		}

		m.g.Dispose(d.bus)
		m.g.Dispose(d.trim)
	}

	m.g.Dispose(m.master)
	m.g.Dispose(m.masterComp)
}
