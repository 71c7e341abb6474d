package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cwbudde/algo-mixer/internal/testutil"
	"github.com/cwbudde/algo-mixer/mix/crossfader"
	"github.com/cwbudde/algo-mixer/mix/events"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
	"github.com/cwbudde/algo-mixer/mix/provider"
)

const (
	testRate  = 8000.0
	tickFrame = 800 // 100 ms
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(n int)
}

func sine(t *testing.T, seconds, hz, amp float64) *graph.Buffer {
	t.Helper()

	buf, err := graph.NewBuffer(testRate, testutil.Sine32(hz, testRate, amp, int(seconds*testRate)))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	return buf
}

func newTestEngine(t *testing.T) (*Engine, fakeClock) {
	t.Helper()

	mem := provider.NewMemory()
	mem.Put("tone", sine(t, 12, 440, 0.005))

	fc := clockwork.NewFakeClock()

	e, err := New(
		WithSampleRate(testRate),
		WithImpulseDuration(0.25),
		WithTransitionSteps(40),
		WithControlClock(fc),
		WithBufferProvider(mem),
		ManualTick(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(e.Dispose)

	return e, fc
}

func twoDecks() *project.MixProject {
	return &project.MixProject{
		ID: "set",
		Tracks: []project.Track{
			{ID: "a", Volume: 1, Deck: project.DeckA, Clips: []project.AudioClip{
				{ID: "a1", SourceID: "tone", StartTime: 0, Duration: 10, Volume: 1},
			}},
			{ID: "b", Volume: 1, Deck: project.DeckB, Clips: []project.AudioClip{
				{ID: "b1", SourceID: "tone", StartTime: 10, Duration: 10, Volume: 1},
			}},
		},
	}
}

// renderFrames renders n frames without ticking the scheduler.
func renderFrames(e *Engine, n int) {
	e.Render(make([]float64, n), make([]float64, n))
}

// advance renders seconds of audio, ticking the scheduler every 100 ms.
func advance(e *Engine, seconds float64) float64 {
	left := make([]float64, tickFrame)
	right := make([]float64, tickFrame)

	var p float64

	for range int(math.Round(seconds * 10)) {
		e.Tick()
		e.Render(left, right)
		p = max(p, testutil.Peak(left), testutil.Peak(right))
	}

	return p
}

func TestFadeTransitionAcrossDecks(t *testing.T) {
	e, fc := newTestEngine(t)

	completed := make(chan events.TransitionCompleted, 1)
	e.Events().TransitionCompleted.Subscribe(func(ev events.TransitionCompleted) {
		completed <- ev
	})

	if err := e.Load(twoDecks()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	e.SetCrossfaderPosition(-50)

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if p := advance(e, 9); p == 0 {
		t.Fatal("deck A silent before the transition")
	}

	if got := e.CurrentTime(); math.Abs(got-9) > 0.01 {
		t.Fatalf("CurrentTime: got %v want 9", got)
	}

	if err := e.PerformTransition(project.TransitionSpec{Type: project.TransitionFade, Duration: 4}); err != nil {
		t.Fatalf("PerformTransition: %v", err)
	}

	// Step k lands k*100 ms after the start at 9 s, so step 20 is t = 11 s.
	for k := 1; k <= 40; k++ {
		fc.BlockUntil(1)
		fc.Advance(100 * time.Millisecond)

		if k == 40 {
			advance(e, 0.1)
			break
		}

		// The step is applied once the runner waits for the next one.
		fc.BlockUntil(1)

		pos := e.State().Crossfader.Position
		if want := -50 + 2.5*float64(k); math.Abs(pos-want) > 1e-9 {
			t.Fatalf("step %d: position got %v want %v", k, pos, want)
		}

		if k == 20 {
			if a, b := crossfader.Gains(e.State().Crossfader.Curve, pos); math.Abs(a-b) > 1e-12 {
				t.Fatalf("step 20: curve gains %v, %v want equal", a, b)
			}
		}

		// Let the cut-lag smoothing settle before reading the rendered gains.
		renderFrames(e, tickFrame/4)

		a, b := e.BlendGains()

		switch {
		case k == 19 && a <= b:
			t.Fatalf("step 19: gains %v, %v want A > B", a, b)
		case k == 20 && math.Abs(a-b) > 1e-4:
			t.Fatalf("step 20: gains %v, %v want equal", a, b)
		case k == 21 && b <= a:
			t.Fatalf("step 21: gains %v, %v want B > A", a, b)
		}

		e.Tick()
		renderFrames(e, tickFrame-tickFrame/4)
	}

	select {
	case ev := <-completed:
		if ev.Cancelled || ev.Spec.Type != project.TransitionFade {
			t.Fatalf("TransitionCompleted: got %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no TransitionCompleted")
	}

	if got := e.State().Crossfader.Position; got != 50 {
		t.Fatalf("final position: got %v want 50", got)
	}

	if e.State().InTransition {
		t.Fatal("still in transition after completion")
	}

	if p := advance(e, 1); p == 0 {
		t.Fatal("deck B silent after the transition")
	}
}

func TestCrossfaderSilencesDeck(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.Load(twoDecks()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Only deck A has audio in the first ten seconds.
	e.SetCrossfaderPosition(50)
	e.SetCutLag(0)

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	advance(e, 0.5)

	if p := advance(e, 1); p > 1e-6 {
		t.Fatalf("deck A at full B: peak %v want silence", p)
	}

	e.SetCrossfaderPosition(0)
	advance(e, 0.2)

	if p := advance(e, 1); p == 0 {
		t.Fatal("deck A silent at center")
	}
}

func TestReloadWhilePlaying(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.Load(twoDecks()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if p := advance(e, 1); p == 0 {
		t.Fatal("first project silent")
	}

	next := twoDecks()
	next.ID = "next"
	next.Tracks[0].ID = "c"
	next.Tracks[1].ID = "d"

	if err := e.Load(next); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if e.IsPlaying() || e.CurrentTime() != 0 {
		t.Fatalf("after reload: playing %v at %v want stopped at 0", e.IsPlaying(), e.CurrentTime())
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if p := advance(e, 1); p == 0 {
		t.Fatal("reloaded project silent")
	}

	if got := e.State().Tracks; len(got) != 2 || got[0].ID != "c" {
		t.Fatalf("tracks after reload: got %+v", got)
	}
}

func TestStateMirrorsControls(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.Load(twoDecks()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	e.SetMasterVolume(0.5)

	if err := e.SetChannelVolume(project.DeckB, 40); err != nil {
		t.Fatalf("SetChannelVolume: %v", err)
	}

	if err := e.SetEQ(project.DeckA, project.EQSettings{Low: -6}); err != nil {
		t.Fatalf("SetEQ: %v", err)
	}

	if err := e.SetTrackSettings("b", 0.8, -1, true, false); err != nil {
		t.Fatalf("SetTrackSettings: %v", err)
	}

	if err := e.SetCrossfaderCurve(project.CurveSharp); err != nil {
		t.Fatalf("SetCrossfaderCurve: %v", err)
	}

	s := e.State()

	if s.SessionID != e.ID() || s.SessionID == "" {
		t.Fatalf("SessionID: got %q want %q", s.SessionID, e.ID())
	}

	if s.MasterVolume != 0.5 {
		t.Fatalf("MasterVolume: got %v want 0.5", s.MasterVolume)
	}

	if s.Decks[project.DeckB].Volume != 40 || s.Crossfader.ChannelBVolume != 40 {
		t.Fatalf("deck B volume: got %v, %v want 40", s.Decks[project.DeckB].Volume, s.Crossfader.ChannelBVolume)
	}

	if s.Decks[project.DeckA].EQ.Low != -6 {
		t.Fatalf("deck A EQ: got %+v", s.Decks[project.DeckA].EQ)
	}

	if s.Crossfader.Curve != project.CurveSharp {
		t.Fatalf("curve: got %q", s.Crossfader.Curve)
	}

	if len(s.Tracks) != 2 || !s.Tracks[1].IsMuted || s.Tracks[1].Pan != -1 {
		t.Fatalf("tracks: got %+v", s.Tracks)
	}

	if s.Playing || s.CurrentTime != 0 {
		t.Fatalf("transport: playing=%v time=%v", s.Playing, s.CurrentTime)
	}
}

func TestControlErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.SetCrossfaderCurve("wobbly"); !errors.Is(err, project.ErrUnknownCurve) {
		t.Fatalf("curve: got %v want ErrUnknownCurve", err)
	}

	if err := e.SetEQ("C", project.EQSettings{}); !errors.Is(err, project.ErrUnknownDeck) {
		t.Fatalf("deck: got %v want ErrUnknownDeck", err)
	}

	if err := e.PerformTransition(project.TransitionSpec{Type: "scratch"}); !errors.Is(err, project.ErrUnknownTransition) {
		t.Fatalf("transition: got %v want ErrUnknownTransition", err)
	}

	if err := e.Load(nil); err == nil {
		t.Fatal("Load(nil) returned nil error")
	}

	dup := twoDecks()
	dup.Tracks[1].ID = "a"

	if err := e.Load(dup); !errors.Is(err, project.ErrDuplicateID) {
		t.Fatalf("duplicate: got %v want ErrDuplicateID", err)
	}
}

func TestDispose(t *testing.T) {
	fc := clockwork.NewFakeClock()

	e, err := New(WithSampleRate(testRate), WithImpulseDuration(0.25), WithControlClock(fc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The scheduler loop is waiting on its ticker.
	fc.BlockUntil(1)

	e.Dispose()
	e.Dispose()

	if err := e.Play(); !errors.Is(err, ErrDisposed) {
		t.Fatalf("Play after Dispose: got %v want ErrDisposed", err)
	}

	if err := e.PerformTransition(project.TransitionSpec{Type: project.TransitionCut}); !errors.Is(err, ErrDisposed) {
		t.Fatalf("PerformTransition after Dispose: got %v want ErrDisposed", err)
	}
}

func TestNewRejectsBadRate(t *testing.T) {
	if _, err := New(WithConfig(Config{SampleRate: 0})); err == nil {
		t.Fatal("New accepted sample rate 0")
	}
}
