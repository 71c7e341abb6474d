// Command djmix is an interactive two-deck mixing console playing through
// the default audio device.
//
// Usage:
//
//	djmix [flags] [project.yaml]
//
// Type "help" at the prompt for the command list. Commands can also be
// read from a file with -run, one per line, before the prompt opens.
//
// Examples:
//
//	djmix -root ~/crate set.yaml
//	djmix -run warmup.txt set.yaml
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/gordonklaus/portaudio"

	"github.com/cwbudde/algo-mixer/internal/config"
	"github.com/cwbudde/algo-mixer/mix/engine"
	"github.com/cwbudde/algo-mixer/mix/events"
	"github.com/cwbudde/algo-mixer/mix/output"
	"github.com/cwbudde/algo-mixer/mix/provider"
)

func main() {
	cfg := config.Load()

	root := flag.String("root", cfg.MediaRoot, "directory source ids resolve under")
	run := flag.String("run", "", "file of commands to run before the prompt")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := cfg.LogLevel
	if *verbose {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := start(cfg, *root, *run, flag.Arg(0), log); err != nil && !errors.Is(err, errQuit) {
		log.Error("djmix", "error", err)
		os.Exit(1)
	}
}

func start(cfg config.Config, root, script, projectFile string, log *slog.Logger) error {
	files := provider.NewFiles(root,
		provider.WithFilesLogger(log),
		provider.WithTargetRate(cfg.SampleRate),
	)

	e, err := engine.New(
		engine.WithConfig(cfg.Engine()),
		engine.WithLogger(log),
		engine.WithBufferProvider(provider.NewCached(files)),
	)
	if err != nil {
		return err
	}
	defer e.Dispose()

	s := &session{e: e, meter: new(output.Meter), out: os.Stdout}

	subs := []*events.Subscription{
		e.Events().TransitionCompleted.Subscribe(func(ev events.TransitionCompleted) {
			fmt.Fprintf(s.out, "\ntransition %s done (cancelled=%v)\n", ev.Spec.Type, ev.Cancelled)
		}),
		e.Events().NodeError.Subscribe(func(ev events.NodeError) {
			log.Warn("clip failed", "clipId", ev.ClipID, "reason", ev.Reason)
		}),
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	sink, err := newSink(e, s.meter, cfg.SampleRate, cfg.BlockSize)
	if err != nil {
		return err
	}
	defer sink.Close()

	if projectFile != "" {
		if err := s.eval("load " + projectFile); err != nil {
			return err
		}
	}

	if script != "" {
		if err := runScript(s, script); err != nil {
			return err
		}
	}

	return repl(s)
}

func runScript(s *session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := s.eval(line); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	return scanner.Err()
}

func repl(s *session) error {
	rl, err := readline.New("djmix> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF {
			return nil
		}

		if err != nil {
			fmt.Fprintln(s.out, err)
			continue
		}

		if err := s.eval(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}

			fmt.Fprintln(s.out, err)
		}
	}
}

// sink plays the engine through the default output device.
type sink struct {
	stream      *portaudio.Stream
	e           *engine.Engine
	meter       *output.Meter
	left, right []float64
}

func newSink(e *engine.Engine, meter *output.Meter, sampleRate float64, blockSize int) (*sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	s := &sink{
		e:     e,
		meter: meter,
		left:  make([]float64, blockSize),
		right: make([]float64, blockSize),
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, sampleRate, blockSize, s.process)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()

		return nil, err
	}

	return s, nil
}

func (s *sink) process(out [][]float32) {
	n := len(out[0])
	if n > len(s.left) {
		s.left = make([]float64, n)
		s.right = make([]float64, n)
	}

	left, right := s.left[:n], s.right[:n]
	s.e.Render(left, right)
	s.meter.Update(left, right)

	for i := range n {
		out[0][i] = float32(left[i])
		out[1][i] = float32(right[i])
	}
}

func (s *sink) Close() error {
	err := s.stream.Stop()
	if cerr := s.stream.Close(); err == nil {
		err = cerr
	}

	portaudio.Terminate()

	return err
}
