package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-mixer/internal/cue"
	"github.com/cwbudde/algo-mixer/mix/engine"
	"github.com/cwbudde/algo-mixer/mix/output"
	"github.com/cwbudde/algo-mixer/mix/project"
)

var errQuit = errors.New("quit")

type session struct {
	e     *engine.Engine
	meter *output.Meter
	out   io.Writer
}

type command struct {
	name  string
	usage string
	arity int // -n means len(args) must be >= n
	run   func(*session, []string) error
}

var commands []command

func init() {
	commands = []command{
		{"load", "load FILE.yaml", 1, loadCommand},
		{"play", "play", 0, func(s *session, _ []string) error { return s.e.Play() }},
		{"pause", "pause", 0, func(s *session, _ []string) error { s.e.Pause(); return nil }},
		{"stop", "stop", 0, func(s *session, _ []string) error { s.e.Stop(); return nil }},
		{"seek", "seek SECONDS", 1, seekCommand},
		{"xf", "xf POSITION (-50..50)", 1, crossfaderCommand},
		{"curve", "curve linear|smooth|sharp|cut", 1, curveCommand},
		{"lag", "lag MILLISECONDS", 1, lagCommand},
		{"vol", "vol DECK 0..100", 2, channelCommand},
		{"master", "master 0..1", 1, masterCommand},
		{"track", "track ID VOLUME PAN [mute] [solo]", -3, trackCommand},
		{"eq", "eq DECK LOW MID HIGH", 4, eqCommand},
		{"fx", "fx DECK REVERB DELAY FILTER PHASER FLANGER BIAS", 7, fxCommand},
		{"delay", "delay DECK SECONDS FEEDBACK", 3, delayCommand},
		{"flanger", "flanger DECK FEEDBACK", 2, flangerCommand},
		{"trans", "trans TYPE [DURATION [DECK]]", -1, transitionCommand},
		{"cancel", "cancel", 0, func(s *session, _ []string) error { s.e.CancelTransition(); return nil }},
		{"state", "state", 0, stateCommand},
		{"help", "help", 0, helpCommand},
		{"quit", "quit", 0, func(*session, []string) error { return errQuit }},
	}
}

func (s *session) eval(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name, args := fields[0], fields[1:]

	i := slices.IndexFunc(commands, func(c command) bool { return c.name == name })
	if i < 0 {
		return fmt.Errorf("unknown command: %s", name)
	}

	cmd := commands[i]

	if cmd.arity < 0 {
		if len(args) < -cmd.arity {
			return fmt.Errorf("%s: need at least %d arguments: %s", name, -cmd.arity, cmd.usage)
		}
	} else if len(args) != cmd.arity {
		return fmt.Errorf("%s: want %d arguments: %s", name, cmd.arity, cmd.usage)
	}

	if err := cmd.run(s, args); err != nil {
		if errors.Is(err, errQuit) {
			return err
		}

		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}

func floats(args []string) ([]float64, error) {
	out := make([]float64, len(args))

	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", a)
		}

		out[i] = v
	}

	return out, nil
}

// deckArgs parses a deck followed by numbers.
func deckArgs(args []string) (project.DeckID, []float64, error) {
	d, err := project.ParseDeck(args[0])
	if err != nil {
		return "", nil, err
	}

	v, err := floats(args[1:])

	return d, v, err
}

func loadCommand(s *session, args []string) error {
	p, err := project.LoadFile(args[0])
	if err != nil {
		return err
	}

	if err := s.e.Load(p); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "loaded %s: %d tracks, %.1fs\n", p.ID, len(p.Tracks), p.Duration())

	return nil
}

func seekCommand(s *session, args []string) error {
	v, err := floats(args)
	if err != nil {
		return err
	}

	s.e.Seek(v[0])

	return nil
}

func crossfaderCommand(s *session, args []string) error {
	v, err := floats(args)
	if err != nil {
		return err
	}

	s.e.SetCrossfaderPosition(v[0])

	return nil
}

func curveCommand(s *session, args []string) error {
	c, err := project.ParseCurve(args[0])
	if err != nil {
		return err
	}

	return s.e.SetCrossfaderCurve(c)
}

func lagCommand(s *session, args []string) error {
	v, err := floats(args)
	if err != nil {
		return err
	}

	s.e.SetCutLag(v[0])

	return nil
}

func channelCommand(s *session, args []string) error {
	d, v, err := deckArgs(args)
	if err != nil {
		return err
	}

	return s.e.SetChannelVolume(d, v[0])
}

func masterCommand(s *session, args []string) error {
	v, err := floats(args)
	if err != nil {
		return err
	}

	s.e.SetMasterVolume(v[0])

	return nil
}

func trackCommand(s *session, args []string) error {
	v, err := floats(args[1:3])
	if err != nil {
		return err
	}

	var muted, solo bool

	for _, flag := range args[3:] {
		switch flag {
		case "mute", "muted":
			muted = true
		case "solo":
			solo = true
		default:
			return fmt.Errorf("unknown track flag %q", flag)
		}
	}

	return s.e.SetTrackSettings(args[0], v[0], v[1], muted, solo)
}

func eqCommand(s *session, args []string) error {
	d, v, err := deckArgs(args)
	if err != nil {
		return err
	}

	return s.e.SetEQ(d, project.EQSettings{Low: v[0], Mid: v[1], High: v[2]})
}

func fxCommand(s *session, args []string) error {
	d, v, err := deckArgs(args)
	if err != nil {
		return err
	}

	return s.e.SetEffects(d, project.EffectsSettings{
		Reverb:     v[0],
		Delay:      v[1],
		Filter:     v[2],
		Phaser:     v[3],
		Flanger:    v[4],
		FilterBias: v[5],
	})
}

func delayCommand(s *session, args []string) error {
	d, v, err := deckArgs(args)
	if err != nil {
		return err
	}

	if err := s.e.SetDelayTime(d, v[0]); err != nil {
		return err
	}

	return s.e.SetDelayFeedback(d, v[1])
}

func flangerCommand(s *session, args []string) error {
	d, v, err := deckArgs(args)
	if err != nil {
		return err
	}

	return s.e.SetFlangerFeedback(d, v[0])
}

func transitionCommand(s *session, args []string) error {
	spec, err := cue.ParseSpec(args)
	if err != nil {
		return err
	}

	return s.e.PerformTransition(spec)
}

func stateCommand(s *session, _ []string) error {
	st := s.e.State()

	if s.meter != nil {
		l, r := s.meter.Peaks()
		fmt.Fprintf(s.out, "peak L %.1f dB  R %.1f dB\n", output.PeakDB(l), output.PeakDB(r))
	}

	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")

	return enc.Encode(st)
}

func helpCommand(s *session, _ []string) error {
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %s\n", c.usage)
	}

	return nil
}
