package scheduler

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cwbudde/algo-mixer/mix/clock"
	"github.com/cwbudde/algo-mixer/mix/events"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
)

const testRate = 1000.0

var errNotFound = errors.New("not found")

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(n int)
}

type memProvider struct {
	mu    sync.Mutex
	bufs  map[string]*graph.Buffer
	loads map[string]int
}

func (p *memProvider) LoadBuffer(_ context.Context, id string) (*graph.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.loads[id]++

	buf, ok := p.bufs[id]
	if !ok {
		return nil, errNotFound
	}

	return buf, nil
}

func (p *memProvider) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.loads[id]
}

// toDestination routes every track straight to the graph output, except
// the track named "nowhere".
type toDestination struct {
	g *graph.Graph
}

func (r toDestination) TrackInput(id string) (*graph.Node, bool) {
	if id == "nowhere" {
		return nil, false
	}

	return r.g.Destination(), true
}

type fixture struct {
	g  *graph.Graph
	p  *memProvider
	s  *Scheduler
	fc fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	g := graph.New(clock.NewSampleClock(testRate), 100)
	p := &memProvider{
		bufs: map[string]*graph.Buffer{
			"dc":   constBuffer(t, 1, 5000),
			"ramp": rampBuffer(t, 5000),
		},
		loads: make(map[string]int),
	}
	fc := clockwork.NewFakeClock()

	return &fixture{
		g:  g,
		p:  p,
		s:  New(g, p, toDestination{g}, WithClock(fc)),
		fc: fc,
	}
}

func (f *fixture) load(t *testing.T, tracks ...project.Track) {
	t.Helper()

	if err := f.s.Load(&project.MixProject{ID: "p", Tracks: tracks}); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func (f *fixture) play(t *testing.T) {
	t.Helper()

	if err := f.s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
}

func (f *fixture) render(frames int) []float64 {
	left := make([]float64, frames)
	right := make([]float64, frames)
	f.g.Render(left, right)

	return left
}

func track(id string, clips ...project.AudioClip) project.Track {
	return project.Track{ID: id, Volume: 1, Clips: clips}
}

func clip(id, source string, start, duration float64) project.AudioClip {
	return project.AudioClip{ID: id, SourceID: source, StartTime: start, Duration: duration, Volume: 1}
}

func constBuffer(t *testing.T, value float32, frames int) *graph.Buffer {
	t.Helper()

	data := make([]float32, frames)
	for i := range data {
		data[i] = value
	}

	buf, err := graph.NewBuffer(testRate, data)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	return buf
}

func rampBuffer(t *testing.T, frames int) *graph.Buffer {
	t.Helper()

	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(i)
	}

	buf, err := graph.NewBuffer(testRate, data)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	return buf
}

func TestPlayStartsClipAtExactAudioTime(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0.05, 1)))
	f.play(t)

	out := f.render(100)
	if out[49] != 0 {
		t.Fatalf("frame 49: got %v want 0", out[49])
	}

	if out[50] != 1 {
		t.Fatalf("frame 50: got %v want 1", out[50])
	}
}

func TestClipScheduledOncePerSession(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0.05, 1)))
	f.play(t)

	for range 3 {
		f.s.Tick()
	}

	if got := f.p.count("dc"); got != 1 {
		t.Fatalf("loads: got %d want 1", got)
	}

	if got := f.s.Active(); !slices.Equal(got, []string{"c1"}) {
		t.Fatalf("active: got %v want [c1]", got)
	}

	// destination + source + clip gain
	if got := f.g.Len(); got != 3 {
		t.Fatalf("graph nodes: got %d want 3", got)
	}
}

func TestLookaheadWindow(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0.5, 1)))
	f.play(t)

	f.render(390)
	f.s.Tick()

	if got := f.s.Active(); len(got) != 0 {
		t.Fatalf("active at 0.39 s: got %v want none", got)
	}

	f.render(60)
	f.s.Tick()

	if got := f.s.Active(); !slices.Equal(got, []string{"c1"}) {
		t.Fatalf("active at 0.45 s: got %v want [c1]", got)
	}

	out := f.render(100)
	if out[49] != 0 || out[50] != 1 {
		t.Fatalf("onset: got %v, %v want 0, 1", out[49], out[50])
	}
}

func TestPlayFromMiddleOfClip(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "ramp", 0, 1)))
	f.s.Seek(0.3)

	if got := f.s.CurrentTime(); got != 0.3 {
		t.Fatalf("CurrentTime: got %v want 0.3", got)
	}

	f.play(t)

	out := f.render(10)
	if out[0] != 300 || out[9] != 309 {
		t.Fatalf("resumed samples: got %v, %v want 300, 309", out[0], out[9])
	}
}

func TestTrimStartOffsetsSource(t *testing.T) {
	f := newFixture(t)

	c := clip("c1", "ramp", 0, 2)
	c.TrimStart = 0.5
	f.load(t, track("t1", c))
	f.play(t)

	out := f.render(10)
	if out[0] != 500 {
		t.Fatalf("first sample: got %v want 500", out[0])
	}
}

func TestClipEndRetiresNodesAndStopsAtProjectEnd(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0, 0.2)))

	var ended []string
	f.s.Hub().ClipEnded.Subscribe(func(e events.ClipEnded) {
		ended = append(ended, e.ClipID)
	})

	f.play(t)
	f.render(300)
	f.s.Tick()

	if !slices.Equal(ended, []string{"c1"}) {
		t.Fatalf("clipEnded: got %v want [c1]", ended)
	}

	if got := f.g.Len(); got != 1 {
		t.Fatalf("graph nodes after end: got %d want 1", got)
	}

	if f.s.IsPlaying() {
		t.Fatal("still playing past project end")
	}

	if got := f.s.CurrentTime(); got != 0 {
		t.Fatalf("position after end: got %v want 0", got)
	}
}

func TestReplayAfterProjectEnd(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0, 0.2)))

	f.play(t)
	f.render(300)
	f.s.Tick()

	if f.s.IsPlaying() {
		t.Fatal("still playing past project end")
	}

	f.play(t)

	if got := f.s.Active(); !slices.Equal(got, []string{"c1"}) {
		t.Fatalf("active after replay: got %v want [c1]", got)
	}

	out := f.render(100)
	if out[0] != 1 || out[99] != 1 {
		t.Fatalf("samples after replay: got %v, %v want 1", out[0], out[99])
	}
}

func TestMissingBufferReportsNodeError(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1",
		clip("bad", "missing", 0, 1),
		clip("good", "dc", 0, 1),
	))

	var errs []events.NodeError
	f.s.Hub().NodeError.Subscribe(func(e events.NodeError) {
		errs = append(errs, e)
	})

	f.play(t)
	f.s.Tick()

	if len(errs) != 1 || errs[0].ClipID != "bad" || errs[0].Reason == "" {
		t.Fatalf("nodeError: got %+v want one for bad", errs)
	}

	if got := f.s.Active(); !slices.Equal(got, []string{"good"}) {
		t.Fatalf("active: got %v want [good]", got)
	}

	if got := f.p.count("missing"); got != 1 {
		t.Fatalf("errored clip retried: %d loads", got)
	}

	if out := f.render(10); out[0] != 1 {
		t.Fatalf("good clip output: got %v want 1", out[0])
	}
}

func TestUnroutedTrackReportsNodeError(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("nowhere", clip("c1", "dc", 0, 1)))

	var errs []events.NodeError
	f.s.Hub().NodeError.Subscribe(func(e events.NodeError) {
		errs = append(errs, e)
	})

	f.play(t)

	if len(errs) != 1 || errs[0].ClipID != "c1" {
		t.Fatalf("nodeError: got %+v want one for c1", errs)
	}

	if got := f.g.Len(); got != 1 {
		t.Fatalf("graph nodes: got %d want 1", got)
	}
}

func TestFadeInAndFadeOut(t *testing.T) {
	f := newFixture(t)

	c := clip("c1", "dc", 0, 0.4)
	c.FadeIn = 0.1
	c.FadeOut = 0.1
	f.load(t, track("t1", c))
	f.play(t)

	out := f.render(400)

	for _, tc := range []struct {
		frame int
		want  float64
	}{
		{frame: 0, want: 0},
		{frame: 50, want: 0.5},
		{frame: 200, want: 1},
		{frame: 350, want: 0.5},
	} {
		if math.Abs(out[tc.frame]-tc.want) > 1e-9 {
			t.Fatalf("frame %d: got %v want %v", tc.frame, out[tc.frame], tc.want)
		}
	}
}

func TestFadesShortenedToClipLength(t *testing.T) {
	in, out := fades(project.AudioClip{Duration: 1, FadeIn: 1.5, FadeOut: 0.5})
	if math.Abs(in-0.75) > 1e-12 || math.Abs(out-0.25) > 1e-12 {
		t.Fatalf("fades: got %v, %v want 0.75, 0.25", in, out)
	}

	if got := clipGain(0.8, 0.2, 0, 1, 0.1); math.Abs(got-0.4) > 1e-12 {
		t.Fatalf("clipGain mid fade-in: got %v want 0.4", got)
	}
}

func TestPauseKeepsPositionAndResumes(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "ramp", 0, 5)))
	f.play(t)
	f.render(1000)
	f.s.Pause()

	if got := f.s.CurrentTime(); got != 1 {
		t.Fatalf("paused position: got %v want 1", got)
	}

	if f.s.IsPlaying() {
		t.Fatal("IsPlaying after Pause")
	}

	if got := f.s.Active(); len(got) != 0 {
		t.Fatalf("active after Pause: got %v", got)
	}

	out := f.render(100)
	if out[50] != 0 {
		t.Fatalf("output after Pause: got %v want 0", out[50])
	}

	f.play(t)

	out = f.render(10)
	if math.Abs(out[0]-1000) > 1e-6 {
		t.Fatalf("resumed sample: got %v want 1000", out[0])
	}
}

func TestStopRewinds(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0, 5)))
	f.play(t)
	f.render(500)
	f.s.Stop()

	if f.s.IsPlaying() || f.s.CurrentTime() != 0 {
		t.Fatalf("after Stop: playing=%v time=%v", f.s.IsPlaying(), f.s.CurrentTime())
	}
}

func TestSeekWhilePlayingRestartsClips(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "ramp", 0, 5)))
	f.play(t)
	f.render(100)
	f.s.Seek(2)

	if got := f.s.Active(); !slices.Equal(got, []string{"c1"}) {
		t.Fatalf("active after Seek: got %v want [c1]", got)
	}

	out := f.render(100)
	if math.Abs(out[50]-2050) > 1e-6 {
		t.Fatalf("sample after Seek: got %v want 2050", out[50])
	}
}

func TestSeekClampsToProject(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 1, 2)))

	f.s.Seek(-4)
	if got := f.s.CurrentTime(); got != 0 {
		t.Fatalf("negative seek: got %v want 0", got)
	}

	f.s.Seek(10)
	if got := f.s.CurrentTime(); got != 3 {
		t.Fatalf("seek past end: got %v want 3", got)
	}
}

func TestPlayWithoutProject(t *testing.T) {
	f := newFixture(t)

	if err := f.s.Play(); !errors.Is(err, ErrNoProject) {
		t.Fatalf("Play: got %v want ErrNoProject", err)
	}
}

func TestLoadRejectsInvalidProject(t *testing.T) {
	f := newFixture(t)

	err := f.s.Load(&project.MixProject{Tracks: []project.Track{
		track("t1", clip("c1", "dc", 0, 1), clip("c1", "dc", 2, 1)),
	}})
	if !errors.Is(err, project.ErrDuplicateID) {
		t.Fatalf("Load: got %v want ErrDuplicateID", err)
	}
}

func TestPrefetchFillsCache(t *testing.T) {
	f := newFixture(t)
	f.load(t,
		track("t1", clip("a", "dc", 0, 1), clip("b", "dc", 2, 1)),
		track("t2", clip("c", "ramp", 0, 1), clip("d", "missing", 1, 1)),
	)

	err := f.s.Prefetch(context.Background())
	if !errors.Is(err, errNotFound) {
		t.Fatalf("Prefetch: got %v want errNotFound", err)
	}

	if f.p.count("dc") != 1 || f.p.count("ramp") != 1 {
		t.Fatalf("loads: dc=%d ramp=%d want 1 each", f.p.count("dc"), f.p.count("ramp"))
	}

	f.play(t)

	if f.p.count("dc") != 1 || f.p.count("ramp") != 1 {
		t.Fatalf("cached sources reloaded: dc=%d ramp=%d", f.p.count("dc"), f.p.count("ramp"))
	}
}

func TestRunTicksOnControlClock(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0.5, 1)))
	f.play(t)
	f.render(450)

	ticked := make(chan struct{}, 1)
	f.s.Hub().TimeUpdate.Subscribe(func(events.TimeUpdate) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- f.s.Run(ctx) }()

	f.fc.BlockUntil(1)
	f.fc.Advance(DefaultTickInterval)

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick after advancing the control clock")
	}

	if got := f.s.Active(); !slices.Equal(got, []string{"c1"}) {
		t.Fatalf("active: got %v want [c1]", got)
	}

	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestDisposeReleasesNodes(t *testing.T) {
	f := newFixture(t)
	f.load(t, track("t1", clip("c1", "dc", 0, 1)))
	f.play(t)
	f.s.Dispose()

	if got := f.g.Len(); got != 1 {
		t.Fatalf("graph nodes: got %d want 1", got)
	}

	if f.s.IsPlaying() {
		t.Fatal("IsPlaying after Dispose")
	}
}
