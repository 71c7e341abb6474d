package trackmix

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/dsp/effects/reverb"
	"github.com/cwbudde/algo-mixer/internal/testutil"
	"github.com/cwbudde/algo-mixer/mix/clock"
	"github.com/cwbudde/algo-mixer/mix/graph"
	"github.com/cwbudde/algo-mixer/mix/project"
)

const testRate = 8000.0

func TestEffectiveTruthTable(t *testing.T) {
	for name, tc := range map[string]struct {
		tracks []project.Track
		want   map[string]float64
	}{
		"no solo": {
			tracks: []project.Track{
				{ID: "a", Volume: 0.8},
				{ID: "b", Volume: 0.5, IsMuted: true},
			},
			want: map[string]float64{"a": 0.8, "b": 0},
		},
		"solo silences others": {
			tracks: []project.Track{
				{ID: "a", Volume: 0.8, IsSolo: true},
				{ID: "b", Volume: 0.5},
				{ID: "c", Volume: 1, IsMuted: true},
			},
			want: map[string]float64{"a": 0.8, "b": 0, "c": 0},
		},
		"two solos": {
			tracks: []project.Track{
				{ID: "a", Volume: 0.8, IsSolo: true},
				{ID: "b", Volume: 0.5, IsSolo: true},
				{ID: "c", Volume: 1},
			},
			want: map[string]float64{"a": 0.8, "b": 0.5, "c": 0},
		},
		"muted solo stays muted": {
			tracks: []project.Track{
				{ID: "a", Volume: 0.8, IsSolo: true, IsMuted: true},
				{ID: "b", Volume: 0.5},
			},
			want: map[string]float64{"a": 0, "b": 0},
		},
	} {
		got := Effective(tc.tracks)
		for id, want := range tc.want {
			if got[id] != want {
				t.Fatalf("%s: track %s: got %v want %v", name, id, got[id], want)
			}
		}
	}
}

type rig struct {
	g *graph.Graph
	m *Mixer
}

func newRig(t *testing.T) *rig {
	t.Helper()

	g := graph.New(clock.NewSampleClock(testRate), 128)

	imp, err := reverb.NewImpulse(testRate, reverb.WithDuration(0.25), reverb.WithPartitionSize(256))
	if err != nil {
		t.Fatalf("NewImpulse: %v", err)
	}

	m, err := New(g, WithImpulse(imp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, d := range project.Decks {
		if err := g.Connect(m.DeckOutput(d), m.MasterInput()); err != nil {
			t.Fatalf("Connect deck %s: %v", d, err)
		}
	}

	err = m.Load([]project.Track{
		{ID: "t1", Volume: 1},
		{ID: "t2", Volume: 1},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	return &rig{g: g, m: m}
}

// play starts a 1 s sine of the given amplitude on a track.
func (r *rig) play(t *testing.T, trackID string, amp float64) {
	t.Helper()

	sine := testutil.DeterministicSine(440, testRate, amp, 8000)
	data := make([]float32, len(sine))
	for i, v := range sine {
		data[i] = float32(v)
	}

	buf, err := graph.NewBuffer(testRate, data)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	src, err := r.g.CreateNode(graph.KindSource, graph.Params{Buffer: buf})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	in, ok := r.m.TrackInput(trackID)
	if !ok {
		t.Fatalf("TrackInput(%s): not found", trackID)
	}

	if err := r.g.Connect(src, in); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	src.Start(r.g.Clock().Now(), 0, 0)
}

func (r *rig) renderRMS(frames int) float64 {
	left := make([]float64, frames)
	right := make([]float64, frames)
	r.g.Render(left, right)

	var sum float64
	for _, v := range left[frames/2:] {
		sum += v * v
	}

	return math.Sqrt(sum / float64(frames-frames/2))
}

func TestTracksReachMaster(t *testing.T) {
	r := newRig(t)
	r.play(t, "t1", 0.005)

	got := r.renderRMS(4000)
	want := 0.005 / math.Sqrt2

	if math.Abs(got-want)/want > 0.03 {
		t.Fatalf("rms: got %v want ~%v", got, want)
	}
}

func TestSoloSilencesOtherDeck(t *testing.T) {
	r := newRig(t)
	r.play(t, "t2", 0.005)

	if err := r.m.SetTrackSettings("t1", 1, 0, false, true); err != nil {
		t.Fatalf("SetTrackSettings: %v", err)
	}

	if got := r.renderRMS(4000); got > 1e-4 {
		t.Fatalf("non-solo track: got rms %v want silence", got)
	}

	tracks := r.m.Tracks()
	if !tracks[0].IsSolo || tracks[1].Deck != project.DeckB {
		t.Fatalf("Tracks: got %+v", tracks)
	}
}

func TestMasterVolume(t *testing.T) {
	r := newRig(t)
	r.play(t, "t1", 0.005)
	r.m.SetMasterVolume(3)
	r.renderRMS(800)

	if got := r.m.MasterVolume(); math.Abs(got-1) > 1e-6 {
		t.Fatalf("clamped master: got %v want 1", got)
	}

	r.m.SetMasterVolume(0)

	if got := r.renderRMS(4000); got > 1e-4 {
		t.Fatalf("muted master: got rms %v", got)
	}
}

func TestMasterVolumeReadsBackBeforeRender(t *testing.T) {
	r := newRig(t)

	if got := r.m.MasterVolume(); got != 1 {
		t.Fatalf("initial master: got %v want 1", got)
	}

	r.m.SetMasterVolume(0.4)

	if got := r.m.MasterVolume(); got != 0.4 {
		t.Fatalf("master before render: got %v want 0.4", got)
	}

	r.m.SetMasterVolume(-2)

	if got := r.m.MasterVolume(); got != 0 {
		t.Fatalf("clamped master: got %v want 0", got)
	}
}

var errPanFactory = errors.New("pan factory exhausted")

// failAfter wraps a node factory so that it errors once n nodes were built.
func failAfter[F ~func(*graph.Node, graph.Params) (R, error), R any](f F, n int) F {
	built := 0

	return func(node *graph.Node, p graph.Params) (R, error) {
		if built >= n {
			var zero R
			return zero, errPanFactory
		}

		built++

		return f(node, p)
	}
}

func TestFailedLoadKeepsPreviousStrips(t *testing.T) {
	def := graph.DefaultRegistry()
	reg := graph.NewRegistry()

	for k := graph.KindGain; k < graph.KindDestination; k++ {
		f := def.Lookup(k)
		if k == graph.KindPanner {
			f = failAfter(f, 2)
		}

		reg.MustRegister(k, f)
	}

	g := graph.New(clock.NewSampleClock(testRate), 128, graph.WithRegistry(reg))

	imp, err := reverb.NewImpulse(testRate, reverb.WithDuration(0.25), reverb.WithPartitionSize(256))
	if err != nil {
		t.Fatalf("NewImpulse: %v", err)
	}

	m, err := New(g, WithImpulse(imp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.Load([]project.Track{{ID: "t1", Volume: 1}, {ID: "t2", Volume: 1}}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	nodes := g.Len()

	err = m.Load([]project.Track{{ID: "a", Volume: 1}, {ID: "b", Volume: 1}})
	if !errors.Is(err, errPanFactory) {
		t.Fatalf("Load: got %v want %v", err, errPanFactory)
	}

	if got := g.Len(); got != nodes {
		t.Fatalf("nodes after failed load: got %d want %d", got, nodes)
	}

	for _, id := range []string{"t1", "t2"} {
		if _, ok := m.TrackInput(id); !ok {
			t.Fatalf("track %s: route lost after failed load", id)
		}
	}

	if _, ok := m.TrackInput("a"); ok {
		t.Fatal("track a: routed after failed load")
	}
}

func TestDeckSettings(t *testing.T) {
	r := newRig(t)

	if err := r.m.SetEQ(project.DeckA, project.EQSettings{Low: -50}); err != nil {
		t.Fatalf("SetEQ: %v", err)
	}

	if got := r.m.DeckState(project.DeckA).EQ.Low; got != -20 {
		t.Fatalf("stored EQ: got %v want -20", got)
	}

	if err := r.m.SetEffects("C", project.EffectsSettings{}); !errors.Is(err, project.ErrUnknownDeck) {
		t.Fatalf("unknown deck: got %v", err)
	}

	if err := r.m.SetTrackSettings("nope", 1, 0, false, false); !errors.Is(err, ErrUnknownTrack) {
		t.Fatalf("unknown track: got %v", err)
	}
}

func TestDeckGainSilencesDeck(t *testing.T) {
	r := newRig(t)
	r.play(t, "t1", 0.005)
	r.m.SetDeckGain(project.DeckA, 0, 0)

	if got := r.renderRMS(2000); got > 1e-9 {
		t.Fatalf("trimmed deck: got rms %v", got)
	}
}

func TestDispose(t *testing.T) {
	r := newRig(t)
	r.m.Dispose()
	r.m.Dispose()

	if got := r.g.Len(); got != 1 {
		t.Fatalf("nodes after dispose: got %d want 1", got)
	}

	if err := r.m.Load(nil); !errors.Is(err, ErrDisposed) {
		t.Fatalf("Load after dispose: got %v want ErrDisposed", err)
	}
}
