package graph

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-mixer/dsp/effects"
	"github.com/cwbudde/algo-mixer/dsp/effects/dynamics"
	"github.com/cwbudde/algo-mixer/dsp/effects/modulation"
	"github.com/cwbudde/algo-mixer/dsp/effects/reverb"
	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
)

// Factory builds the processor of a new node and declares its parameters
// through n.
type Factory func(n *Node, p Params) (processor, error)

// Registry maps node kinds to their factories.
type Registry struct {
	factories map[Kind]Factory
}

var errDuplicateKind = errors.New("duplicate node kind")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// Register adds a factory for kind.
func (r *Registry) Register(kind Kind, factory Factory) error {
	if factory == nil {
		return errors.New("nil factory")
	}

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: %s", errDuplicateKind, kind)
	}

	r.factories[kind] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(kind Kind, factory Factory) {
	if err := r.Register(kind, factory); err != nil {
		panic("graph registry: " + err.Error())
	}
}

// Lookup returns the factory for kind, or nil.
func (r *Registry) Lookup(kind Kind) Factory {
	return r.factories[kind]
}

// DefaultRegistry returns a Registry with every built-in node kind. The
// destination is not registered; each graph creates its own.
//
//nolint:funlen
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(KindGain, func(n *Node, p Params) (processor, error) {
		return &gainProc{gain: n.addParam(p, "gain", 1, 0, 8)}, nil
	})

	r.MustRegister(KindFilter, func(n *Node, p Params) (processor, error) {
		nyquist := n.graph.sampleRate / 2

		return &filterProc{
			typ:    p.Filter,
			freq:   n.addParam(p, "frequency", 350, 10, nyquist),
			q:      n.addParam(p, "q", biquad.DefaultQ, 0.0001, 30),
			gainDB: n.addParam(p, "gain", 0, -40, 40),
			sections: [2]*biquad.Section{
				biquad.NewSection(biquad.Identity()),
				biquad.NewSection(biquad.Identity()),
			},
		}, nil
	})

	r.MustRegister(KindDelay, func(n *Node, p Params) (processor, error) {
		echo, err := effects.NewEcho(n.graph.sampleRate)
		if err != nil {
			return nil, err
		}

		return &delayProc{
			time:     n.addParam(p, "delayTime", effects.DefaultEchoTime(), 0, effects.MaxEchoTime()),
			feedback: n.addParam(p, "feedback", effects.DefaultEchoFeedback(), 0, 0.9),
			echo:     echo,
		}, nil
	})

	r.MustRegister(KindConvolver, func(n *Node, p Params) (processor, error) {
		imp := p.Impulse
		if imp == nil {
			var err error

			imp, err = reverb.NewImpulse(n.graph.sampleRate)
			if err != nil {
				return nil, err
			}
		}

		conv, err := reverb.NewConvolution(imp)
		if err != nil {
			return nil, err
		}

		return &convolverProc{conv: conv}, nil
	})

	r.MustRegister(KindPhaser, func(n *Node, p Params) (processor, error) {
		fx, err := modulation.NewPhaser(n.graph.sampleRate)
		if err != nil {
			return nil, err
		}

		return &phaserProc{
			rate:  n.addParam(p, "rate", fx.RateHz(), 0.01, 20),
			depth: n.addParam(p, "depth", fx.DepthHz(), 0, 1000),
			base:  n.addParam(p, "base", 1100, 20, 16000),
			fx:    fx,
		}, nil
	})

	r.MustRegister(KindFlanger, func(n *Node, p Params) (processor, error) {
		fx, err := modulation.NewFlanger(n.graph.sampleRate)
		if err != nil {
			return nil, err
		}

		return &flangerProc{
			rate:     n.addParam(p, "rate", 0.25, 0.01, 20),
			depth:    n.addParam(p, "depth", fx.DepthSeconds(), 0, 0.002),
			center:   n.addParam(p, "delay", 0.005, 0.0001, 0.01),
			feedback: n.addParam(p, "feedback", fx.Feedback(), 0, 0.95),
			fx:       fx,
		}, nil
	})

	r.MustRegister(KindCompressor, func(n *Node, p Params) (processor, error) {
		fx, err := dynamics.NewCompressor(n.graph.sampleRate)
		if err != nil {
			return nil, err
		}

		return &compressorProc{
			threshold: n.addParam(p, "threshold", fx.Threshold(), -100, 0),
			ratio:     n.addParam(p, "ratio", fx.Ratio(), 1, 20),
			knee:      n.addParam(p, "knee", fx.Knee(), 0, 40),
			attack:    n.addParam(p, "attack", fx.Attack()/1000, 0, 1),
			release:   n.addParam(p, "release", fx.Release()/1000, 0.001, 1),
			fx:        fx,
		}, nil
	})

	r.MustRegister(KindPanner, func(n *Node, p Params) (processor, error) {
		return &pannerProc{pan: n.addParam(p, "pan", 0, -1, 1)}, nil
	})

	r.MustRegister(KindSource, func(n *Node, p Params) (processor, error) {
		if p.Buffer == nil || p.Buffer.Frames() == 0 {
			return nil, ErrEmptyBuffer
		}

		return newSourceProc(p.Buffer, n.graph.sampleRate), nil
	})

	return r
}
