package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-mixer/mix/events"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
)

const (
	// DefaultLookahead is how far ahead of the playhead clips are started,
	// in seconds.
	DefaultLookahead = 0.1
	// DefaultTickInterval is the period of Run.
	DefaultTickInterval = 100 * time.Millisecond
	// DefaultPrefetchLimit bounds concurrent loads in Prefetch.
	DefaultPrefetchLimit = 4
	// DefaultLoadTimeout bounds a single buffer load during a tick.
	DefaultLoadTimeout = 30 * time.Second

	// Clips cut by Pause, Stop or Seek fade out before the source stops.
	stopSmoothing = 0.003
	stopDelay     = 0.015

	// A voice whose ended notice was lost is retired this long after it
	// should have finished.
	expiryGrace = 0.25
)

var (
	// ErrNoProject is returned by Play before a project was loaded.
	ErrNoProject = errors.New("scheduler: no project loaded")
	// ErrNoRoute is reported for a clip whose track has no chain input.
	ErrNoRoute = errors.New("scheduler: no route for track")
	// ErrNoProvider is reported when clips need buffers but no provider
	// was configured.
	ErrNoProvider = errors.New("scheduler: no buffer provider")
)

// BufferProvider resolves a clip's source id to decoded audio.
type BufferProvider interface {
	LoadBuffer(ctx context.Context, sourceID string) (*graph.Buffer, error)
}

// Router maps a track id to the node a clip of that track feeds.
type Router interface {
	TrackInput(trackID string) (*graph.Node, bool)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the control clock that paces Run.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clk = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHub sets the event hub clip events are published on.
func WithHub(h *events.Hub) Option {
	return func(s *Scheduler) {
		if h != nil {
			s.hub = h
		}
	}
}

// WithLookahead sets the scheduling window in seconds.
func WithLookahead(seconds float64) Option {
	return func(s *Scheduler) {
		if seconds > 0 {
			s.lookahead = seconds
		}
	}
}

// WithTickInterval sets the period of Run.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPrefetchLimit bounds the number of concurrent loads in Prefetch.
func WithPrefetchLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.prefetchLimit = n
		}
	}
}

// WithLoadTimeout bounds a single buffer load during a tick.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

// Scheduler starts project clips on the graph ahead of the playhead.
type Scheduler struct {
	g        *graph.Graph
	provider BufferProvider
	router   Router
	hub      *events.Hub
	log      *slog.Logger
	clk      clockwork.Clock

	lookahead     float64
	interval      time.Duration
	prefetchLimit int
	loadTimeout   time.Duration

	mu       sync.Mutex
	project  *project.MixProject
	playing  bool
	offset   float64 // audio-clock time of session position zero
	position float64 // session position while stopped
	gen      uint64

	scheduled map[string]struct{}
	errored   map[string]struct{}
	active    map[string]*voice
	voices    map[*graph.Node]*voice
	cache     map[string]*graph.Buffer
}

// voice is one started clip and the nodes it owns.
type voice struct {
	clipID string
	src    *graph.Node
	gain   *graph.Node
	end    float64 // audio-clock time playback should be over
}

// job is a clip picked by a tick, waiting for its buffer.
type job struct {
	clip    project.AudioClip
	trackID string
	when    float64
	offset  float64
	buf     *graph.Buffer
	err     error
}

// outbox collects events raised under the lock; they are published after
// it is released so subscribers may call back into the scheduler.
type outbox struct {
	ended  []events.ClipEnded
	errs   []events.NodeError
	update *events.TimeUpdate
}

// New returns a scheduler placing clips on g. provider may be nil when
// every buffer is supplied through Preload.
func New(g *graph.Graph, provider BufferProvider, router Router, opts ...Option) *Scheduler {
	s := &Scheduler{
		g:             g,
		provider:      provider,
		router:        router,
		hub:           events.NewHub(),
		log:           slog.Default(),
		clk:           clockwork.NewRealClock(),
		lookahead:     DefaultLookahead,
		interval:      DefaultTickInterval,
		prefetchLimit: DefaultPrefetchLimit,
		loadTimeout:   DefaultLoadTimeout,
		scheduled:     make(map[string]struct{}),
		errored:       make(map[string]struct{}),
		active:        make(map[string]*voice),
		voices:        make(map[*graph.Node]*voice),
		cache:         make(map[string]*graph.Buffer),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Hub returns the hub clip events are published on.
func (s *Scheduler) Hub() *events.Hub { return s.hub }

// Load replaces the project. Playback stops and position returns to zero.
// Cached buffers of sources the new project still uses are kept.
func (s *Scheduler) Load(p *project.MixProject) error {
	if p == nil {
		return ErrNoProject
	}

	p = p.Clone()
	p.Normalize()

	if err := p.Validate(); err != nil {
		return fmt.Errorf("scheduler: load: %w", err)
	}

	used := make(map[string]struct{})
	for _, tr := range p.Tracks {
		for _, c := range tr.Clips {
			used[c.SourceID] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAll(s.g.Clock().Now())
	s.project = p
	s.playing = false
	s.position = 0
	clear(s.errored)

	for id := range s.cache {
		if _, ok := used[id]; !ok {
			delete(s.cache, id)
		}
	}

	s.log.Debug("project loaded", "projectId", p.ID, "tracks", len(p.Tracks))

	return nil
}

// Preload seeds the buffer cache for sourceID.
func (s *Scheduler) Preload(sourceID string, buf *graph.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[sourceID] = buf
}

// Prefetch loads every source of the project that is not cached yet,
// concurrently. Failed sources are reported in the returned error and
// retried when their clips come up.
func (s *Scheduler) Prefetch(ctx context.Context) error {
	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return nil
	}

	var ids []string
	seen := make(map[string]struct{})

	for _, tr := range s.project.Tracks {
		for _, c := range tr.Clips {
			if _, ok := seen[c.SourceID]; ok {
				continue
			}

			seen[c.SourceID] = struct{}{}

			if _, ok := s.cache[c.SourceID]; !ok {
				ids = append(ids, c.SourceID)
			}
		}
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	if s.provider == nil {
		return ErrNoProvider
	}

	var (
		eg   errgroup.Group
		emu  sync.Mutex
		errs []error
	)

	eg.SetLimit(s.prefetchLimit)

	for _, id := range ids {
		eg.Go(func() error {
			buf, err := s.provider.LoadBuffer(ctx, id)
			if err == nil && buf == nil {
				err = graph.ErrEmptyBuffer
			}

			if err != nil {
				emu.Lock()
				errs = append(errs, fmt.Errorf("prefetch %s: %w", id, err))
				emu.Unlock()

				return nil
			}

			s.Preload(id, buf)

			return nil
		})
	}

	_ = eg.Wait()

	return errors.Join(errs...)
}

// Run ticks on the control clock until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clk.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.Tick()
		}
	}
}

// Tick runs one scheduling pass: it retires finished clips, starts every
// clip due within the lookahead window and publishes the position.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	out := &outbox{}
	jobs := s.plan(out)
	gen := s.gen
	s.mu.Unlock()

	if len(jobs) > 0 {
		s.load(jobs)

		s.mu.Lock()
		s.commit(jobs, gen, out)
		s.mu.Unlock()
	}

	s.publish(out)
}

// Play starts or resumes the session from the current position.
func (s *Scheduler) Play() error {
	s.mu.Lock()

	if s.project == nil {
		s.mu.Unlock()
		return ErrNoProject
	}

	if s.playing {
		s.mu.Unlock()
		return nil
	}

	s.offset = s.g.Clock().Now() - s.position
	s.playing = true
	s.mu.Unlock()

	s.Tick()

	return nil
}

// Pause stops every clip and keeps the position.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return
	}

	now := s.g.Clock().Now()
	s.position = now - s.offset
	s.playing = false
	s.stopAll(now)
}

// Stop stops every clip and rewinds to zero.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAll(s.g.Clock().Now())
	s.playing = false
	s.position = 0
}

// Seek moves the playhead to t seconds, clamped to the project. Sounding
// clips stop; while playing, clips under the new position start right away
// at the matching offset.
func (s *Scheduler) Seek(t float64) {
	s.mu.Lock()

	if t < 0 || math.IsNaN(t) {
		t = 0
	}

	if s.project != nil {
		t = min(t, s.project.Duration())
	}

	now := s.g.Clock().Now()
	s.stopAll(now)
	s.position = t
	playing := s.playing

	if playing {
		s.offset = now - t
	}
	s.mu.Unlock()

	if playing {
		s.Tick()
	}
}

// CurrentTime returns the session position in seconds.
func (s *Scheduler) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current(s.g.Clock().Now())
}

// IsPlaying reports whether a session is running.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playing
}

// Active returns the ids of the clips started in this session that have
// not ended yet, sorted.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Dispose releases every node the scheduler created and forgets the
// project.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.voices {
		s.g.Dispose(v.src)
		s.g.Dispose(v.gain)
	}

	clear(s.voices)
	clear(s.active)
	clear(s.scheduled)
	clear(s.cache)

	s.gen++
	s.project = nil
	s.playing = false
	s.position = 0
}

func (s *Scheduler) current(now float64) float64 {
	if s.playing {
		return now - s.offset
	}

	return s.position
}

// plan picks the clips due this tick and marks them scheduled. Called with
// the lock held.
func (s *Scheduler) plan(out *outbox) []job {
	s.drainEnded(out)

	now := s.g.Clock().Now()
	s.retireExpired(now, out)

	if !s.playing || s.project == nil {
		return nil
	}

	current := now - s.offset
	horizon := current + s.lookahead

	var jobs []job

	for _, tr := range s.project.Tracks {
		for _, c := range tr.Clips {
			if c.StartTime >= horizon {
				break
			}

			if c.EndTime() <= current {
				continue
			}

			if _, ok := s.scheduled[c.ID]; ok {
				continue
			}

			if _, ok := s.errored[c.ID]; ok {
				continue
			}

			s.scheduled[c.ID] = struct{}{}

			j := job{clip: c, trackID: tr.ID, buf: s.cache[c.SourceID]}
			if c.StartTime >= current {
				j.when = now + (c.StartTime - current)
			} else {
				j.when = now
				j.offset = current - c.StartTime
			}

			jobs = append(jobs, j)
		}
	}

	out.update = &events.TimeUpdate{CurrentTime: current}

	if current >= s.project.Duration() && len(s.active) == 0 && len(jobs) == 0 {
		s.playing = false
		s.position = 0
		s.stopAll(now)
		s.log.Debug("reached project end", "currentTime", current)
	}

	return jobs
}

// load fetches the buffers the jobs lack. Called without the lock.
func (s *Scheduler) load(jobs []job) {
	loaded := make(map[string]*job)

	for i := range jobs {
		j := &jobs[i]
		if j.buf != nil {
			continue
		}

		if prev, ok := loaded[j.clip.SourceID]; ok {
			j.buf, j.err = prev.buf, prev.err
			continue
		}

		loaded[j.clip.SourceID] = j

		if s.provider == nil {
			j.err = ErrNoProvider
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.loadTimeout)
		j.buf, j.err = s.provider.LoadBuffer(ctx, j.clip.SourceID)
		cancel()

		if j.err == nil && j.buf == nil {
			j.err = graph.ErrEmptyBuffer
		}
	}
}

// commit wires the loaded jobs unless the session changed meanwhile.
// Called with the lock held.
func (s *Scheduler) commit(jobs []job, gen uint64, out *outbox) {
	if gen != s.gen || !s.playing {
		return
	}

	for i := range jobs {
		j := &jobs[i]

		err := j.err
		if err == nil {
			s.cache[j.clip.SourceID] = j.buf
			err = s.start(j)
		}

		if err != nil {
			s.errored[j.clip.ID] = struct{}{}
			delete(s.scheduled, j.clip.ID)
			out.errs = append(out.errs, events.NodeError{ClipID: j.clip.ID, Reason: err.Error()})
			s.log.Warn("clip failed", "clipId", j.clip.ID, "trackId", j.trackID, "error", err)
		}
	}
}

// start creates and wires the nodes of one clip.
func (s *Scheduler) start(j *job) error {
	c := j.clip
	length := c.PlaybackLength()

	// Loading may have taken audio time; join the clip where it is now.
	if now := s.g.Clock().Now(); j.when < now {
		j.offset += now - j.when
		j.when = now
	}

	if j.offset >= length {
		return nil
	}

	input, ok := s.router.TrackInput(j.trackID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, j.trackID)
	}

	fadeIn, fadeOut := fades(c)

	src, err := s.g.CreateNode(graph.KindSource, graph.Params{Buffer: j.buf})
	if err != nil {
		return err
	}

	gain, err := s.g.CreateNode(graph.KindGain, graph.Params{Values: map[string]float64{
		"gain": clipGain(c.Volume, fadeIn, fadeOut, length, j.offset),
	}})
	if err != nil {
		s.g.Dispose(src)
		return err
	}

	if err := s.connect(src, gain, input); err != nil {
		s.g.Dispose(src)
		s.g.Dispose(gain)

		return err
	}

	clipStart := j.when - j.offset
	clipEnd := clipStart + length
	level := gain.Param("gain")

	if fadeIn > 0 && j.offset < fadeIn {
		level.RampAt(c.Volume, j.when, clipStart+fadeIn)
	}

	if fadeOut > 0 {
		level.RampAt(0, max(clipEnd-fadeOut, j.when), clipEnd)
	}

	src.Start(j.when, c.TrimStart+j.offset, length-j.offset)

	v := &voice{clipID: c.ID, src: src, gain: gain, end: clipEnd}
	s.active[c.ID] = v
	s.voices[src] = v

	s.log.Debug("clip scheduled",
		"clipId", c.ID, "trackId", j.trackID, "when", j.when, "offset", j.offset)

	return nil
}

func (s *Scheduler) connect(src, gain, input *graph.Node) error {
	if err := s.g.Connect(src, gain); err != nil {
		return err
	}

	return s.g.Connect(gain, input)
}

// stopAll fades out every sounding clip and ends the session. The voices
// stay tracked until their sources report the end. Called with the lock
// held.
func (s *Scheduler) stopAll(now float64) {
	for id, v := range s.active {
		v.gain.Param("gain").SetSmoothed(0, stopSmoothing)
		v.src.Stop(now + stopDelay)
		v.end = min(v.end, now+stopDelay)
		delete(s.active, id)
	}

	clear(s.scheduled)
	s.gen++
}

func (s *Scheduler) drainEnded(out *outbox) {
	for {
		select {
		case n := <-s.g.Ended():
			if v, ok := s.voices[n]; ok {
				s.retire(v, out)
			}
		default:
			return
		}
	}
}

func (s *Scheduler) retireExpired(now float64, out *outbox) {
	for _, v := range s.voices {
		if now > v.end+expiryGrace {
			s.retire(v, out)
		}
	}
}

func (s *Scheduler) retire(v *voice, out *outbox) {
	s.g.Dispose(v.src)
	s.g.Dispose(v.gain)
	delete(s.voices, v.src)

	if s.active[v.clipID] == v {
		delete(s.active, v.clipID)
	}

	out.ended = append(out.ended, events.ClipEnded{ClipID: v.clipID})
}

func (s *Scheduler) publish(out *outbox) {
	for _, e := range out.errs {
		s.hub.NodeError.Publish(e)
	}

	for _, e := range out.ended {
		s.hub.ClipEnded.Publish(e)
	}

	if out.update != nil {
		s.hub.TimeUpdate.Publish(*out.update)
	}
}

// fades returns the clip's fade lengths, scaled down together when they
// would overlap.
func fades(c project.AudioClip) (float64, float64) {
	in, out := c.FadeIn, c.FadeOut
	length := c.PlaybackLength()

	if total := in + out; total > length && total > 0 {
		scale := length / total
		in *= scale
		out *= scale
	}

	return in, out
}

// clipGain is the clip gain at offset seconds into playback.
func clipGain(volume, fadeIn, fadeOut, length, offset float64) float64 {
	g := volume

	if fadeIn > 0 && offset < fadeIn {
		g = volume * offset / fadeIn
	}

	if fadeOut > 0 && offset > length-fadeOut {
		g = min(g, volume*(length-offset)/fadeOut)
	}

	return max(g, 0)
}
