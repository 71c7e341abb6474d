// Package cue parses transition cues of the form TIME:TYPE[:DURATION[:DECK]].
package cue

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-mixer/mix/project"
)

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("cue: syntax")

// DefaultDuration is used when a cue names no duration.
const DefaultDuration = 4.0

// Cue is a transition triggered when the session reaches At seconds.
type Cue struct {
	At   float64
	Spec project.TransitionSpec
}

func (c Cue) String() string {
	s := fmt.Sprintf("%g:%s:%g", c.At, c.Spec.Type, c.Spec.Duration)
	if c.Spec.Deck != "" {
		s += ":" + string(c.Spec.Deck)
	}

	return s
}

// Parse reads one cue.
func Parse(s string) (Cue, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 4 {
		return Cue{}, fmt.Errorf("%w: %q: want TIME:TYPE[:DURATION[:DECK]]", ErrSyntax, s)
	}

	at, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || at < 0 {
		return Cue{}, fmt.Errorf("%w: %q: bad time %q", ErrSyntax, s, parts[0])
	}

	spec, err := ParseSpec(parts[1:])
	if err != nil {
		return Cue{}, fmt.Errorf("%q: %w", s, err)
	}

	return Cue{At: at, Spec: spec}, nil
}

// ParseSpec reads TYPE [DURATION [DECK]] into a validated transition.
func ParseSpec(fields []string) (project.TransitionSpec, error) {
	if len(fields) == 0 {
		return project.TransitionSpec{}, fmt.Errorf("%w: missing transition type", ErrSyntax)
	}

	spec := project.TransitionSpec{
		Type:     project.TransitionType(fields[0]),
		Duration: DefaultDuration,
	}

	if len(fields) > 1 {
		d, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return project.TransitionSpec{}, fmt.Errorf("%w: bad duration %q", ErrSyntax, fields[1])
		}

		spec.Duration = d
	}

	if len(fields) > 2 {
		d, err := project.ParseDeck(fields[2])
		if err != nil {
			return project.TransitionSpec{}, err
		}

		spec.Deck = d
	}

	if len(fields) > 3 {
		return project.TransitionSpec{}, fmt.Errorf("%w: trailing %q", ErrSyntax, fields[3:])
	}

	if err := spec.Validate(); err != nil {
		return project.TransitionSpec{}, err
	}

	return spec, nil
}

// List collects cues from a repeatable flag.
type List []Cue

func (l *List) String() string {
	if l == nil {
		return ""
	}

	parts := make([]string, len(*l))
	for i, c := range *l {
		parts[i] = c.String()
	}

	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (l *List) Set(s string) error {
	c, err := Parse(s)
	if err != nil {
		return err
	}

	*l = append(*l, c)

	return nil
}

// Sorted returns a copy ordered by time, keeping the order of equal times.
func (l List) Sorted() List {
	out := slices.Clone(l)
	slices.SortStableFunc(out, func(a, b Cue) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		default:
			return 0
		}
	})

	return out
}
