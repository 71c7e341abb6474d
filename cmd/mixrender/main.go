// Command mixrender renders a YAML mix project to a WAV file faster than
// real time.
//
// Usage:
//
//	mixrender [flags] project.yaml
//
// Source ids resolve to audio files under -root. Cues schedule automated
// transitions on the project timeline as TIME:TYPE[:DURATION[:DECK]].
//
// Examples:
//
//	mixrender -o set.wav set.yaml
//	mixrender -root ~/crate -position -50 -cue 9:fade:4 -o set.wav set.yaml
//	mixrender -bits 24 -cue 30:echo:8:A -cue 62:bassSwap:8 set.yaml
//	mixrender -dither none -o reference.wav set.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cwbudde/algo-mixer/dsp/dither"
	"github.com/cwbudde/algo-mixer/internal/config"
	"github.com/cwbudde/algo-mixer/internal/cue"
	"github.com/cwbudde/algo-mixer/measure/loudness"
	"github.com/cwbudde/algo-mixer/mix/engine"
	"github.com/cwbudde/algo-mixer/mix/output"
	"github.com/cwbudde/algo-mixer/mix/project"
	"github.com/cwbudde/algo-mixer/mix/provider"
)

func main() {
	cfg := config.Load()

	out := flag.String("o", "mix.wav", "output WAV file")
	root := flag.String("root", cfg.MediaRoot, "directory source ids resolve under")
	bits := flag.Int("bits", cfg.BitDepth, "WAV bit depth (16 or 24)")
	rate := flag.Float64("rate", cfg.SampleRate, "render sample rate in Hz")
	position := flag.Float64("position", 0, "initial crossfader position (-50 = deck A, 50 = deck B)")
	tail := flag.Float64("tail", 3, "seconds rendered after the last clip ends")
	limit := flag.Float64("max", 0, "stop after this many seconds (0 = until the project ends)")
	ditherName := flag.String("dither", "tpdf", "dither noise: none, rpdf or tpdf")
	shape := flag.Bool("shape", false, "first-order noise shaping")
	verbose := flag.Bool("v", false, "debug logging")

	var cues cue.List
	flag.Var(&cues, "cue", "transition cue TIME:TYPE[:DURATION[:DECK]] (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mixrender [flags] project.yaml\n\n")
		fmt.Fprintf(os.Stderr, "Renders a mix project offline to a WAV file.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := cfg.LogLevel
	if *verbose {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ditherType, err := dither.ParseType(*ditherName)
	if err != nil {
		log.Error("bad flag", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := renderOptions{
		project:  flag.Arg(0),
		out:      *out,
		root:     *root,
		bits:     *bits,
		position: *position,
		tail:     *tail,
		limit:    *limit,
		dither:   ditherType,
		shape:    *shape,
		cues:     cues,
	}

	cfg.SampleRate = *rate

	if err := render(ctx, cfg, opts, log); err != nil {
		log.Error("render failed", "error", err)
		os.Exit(1)
	}
}

type renderOptions struct {
	project  string
	out      string
	root     string
	bits     int
	position float64
	tail     float64
	limit    float64
	dither   dither.Type
	shape    bool
	cues     cue.List
}

func render(ctx context.Context, cfg config.Config, opts renderOptions, log *slog.Logger) error {
	p, err := project.LoadFile(opts.project)
	if err != nil {
		return err
	}

	files := provider.NewFiles(opts.root,
		provider.WithFilesLogger(log),
		provider.WithTargetRate(cfg.SampleRate),
	)

	// Transition steps follow audio time: the control clock only moves when
	// the render loop advances it.
	fc := clockwork.NewFakeClock()

	e, err := engine.New(
		engine.WithConfig(cfg.Engine()),
		engine.ManualTick(),
		engine.WithControlClock(fc),
		engine.WithLogger(log),
		engine.WithBufferProvider(files),
	)
	if err != nil {
		return err
	}
	defer e.Dispose()

	if err := e.Load(p); err != nil {
		return err
	}

	if err := e.Prefetch(ctx); err != nil {
		// Clips whose source failed are reported again and skipped at play time.
		log.Warn("prefetch incomplete", "error", err)
	}

	e.SetCrossfaderPosition(opts.position)

	w, err := output.CreateWAV(opts.out, int(cfg.SampleRate), opts.bits, output.WithDither(opts.dither, opts.shape))
	if err != nil {
		return err
	}

	meter, err := loudness.New(cfg.SampleRate, 2)
	if err != nil {
		w.Close()
		return err
	}

	if err := e.Play(); err != nil {
		w.Close()
		return err
	}

	pending := opts.cues.Sorted()
	interval := cfg.TickInterval

	tick := func() {
		fc.Advance(interval)
		e.Tick()

		for len(pending) > 0 && pending[0].At <= e.CurrentTime() {
			c := pending[0]
			pending = pending[1:]

			if err := e.PerformTransition(c.Spec); err != nil {
				log.Warn("cue rejected", "at", c.At, "type", c.Spec.Type, "error", err)
				continue
			}

			log.Info("cue", "at", c.At, "type", c.Spec.Type, "duration", c.Spec.Duration)
		}
	}

	start := time.Now()

	frames, err := output.Offline(ctx, e, tick, output.Tee(w, meter), output.OfflineConfig{
		SampleRate:   cfg.SampleRate,
		BlockSize:    cfg.BlockSize,
		TickInterval: interval,
		Duration:     opts.limit,
		Done:         func() bool { return !e.IsPlaying() },
		Tail:         opts.tail,
	})

	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	seconds := float64(frames) / cfg.SampleRate
	log.Info("rendered",
		"file", opts.out,
		"seconds", seconds,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"speed", seconds/max(time.Since(start).Seconds(), 1e-9),
		"lufs", round1(meter.Integrated()),
		"lra", round1(meter.Range()),
		"peakDb", round1(output.PeakDB(meter.Peak())),
	)

	return err
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
