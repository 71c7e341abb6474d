package graph

import (
	"sync/atomic"

	"github.com/cwbudde/algo-mixer/dsp/effects/reverb"
	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
)

// Kind identifies a node's processing behavior.
type Kind int

const (
	KindGain Kind = iota
	KindFilter
	KindDelay
	KindConvolver
	KindPhaser
	KindFlanger
	KindCompressor
	KindPanner
	KindSource
	KindDestination
)

func (k Kind) String() string {
	switch k {
	case KindGain:
		return "gain"
	case KindFilter:
		return "filter"
	case KindDelay:
		return "delay"
	case KindConvolver:
		return "convolver"
	case KindPhaser:
		return "phaser"
	case KindFlanger:
		return "flanger"
	case KindCompressor:
		return "compressor"
	case KindPanner:
		return "panner"
	case KindSource:
		return "source"
	case KindDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// Params carries construction arguments for CreateNode. Values sets initial
// parameter values by name; unknown names are ignored.
type Params struct {
	Values  map[string]float64
	Filter  biquad.Type
	Buffer  *Buffer
	Impulse *reverb.Impulse
}

// processor renders one block: it reads n.in and writes n.out.
type processor interface {
	process(n *Node, start int64, frames int)
}

// resetter is implemented by processors that hold sample history.
type resetter interface {
	reset()
}

// Node is a vertex of the graph. Its parameters and buffers are fixed at
// creation.
type Node struct {
	id       uint64
	kind     Kind
	graph    *Graph
	params   map[string]*Param
	proc     processor
	disposed atomic.Bool

	// render-owned
	in  [2][]float64
	out [2][]float64
}

func newNode(g *Graph, id uint64, kind Kind) *Node {
	n := &Node{
		id:     id,
		kind:   kind,
		graph:  g,
		params: make(map[string]*Param),
	}

	for ch := range n.in {
		n.in[ch] = make([]float64, g.blockSize)
		n.out[ch] = make([]float64, g.blockSize)
	}

	return n
}

// ID returns the node identifier, unique within its graph.
func (n *Node) ID() uint64 { return n.id }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Disposed reports whether the node has been removed from its graph.
func (n *Node) Disposed() bool { return n.disposed.Load() }

// Param returns the named parameter or nil. Calls on a nil Param are no-ops.
func (n *Node) Param(name string) *Param {
	if n == nil {
		return nil
	}

	return n.params[name]
}

// ParamNames lists the node's parameter names.
func (n *Node) ParamNames() []string {
	names := make([]string, 0, len(n.params))
	for name := range n.params {
		names = append(names, name)
	}

	return names
}

// Start schedules playback of a source node at audio-clock time at, from
// offset seconds into the buffer, for duration seconds (<= 0 plays to the
// end). Other kinds ignore it, as does a source that was already started.
func (n *Node) Start(at, offset, duration float64) {
	if n == nil || n.kind != KindSource || n.disposed.Load() {
		return
	}

	n.graph.enqueue(command{
		kind:     cmdStart,
		node:     n,
		at:       n.graph.clock.FrameAt(at),
		offset:   offset,
		duration: duration,
	})
}

// Stop ends playback of a source node at audio-clock time at. A source
// that was never started ends immediately.
func (n *Node) Stop(at float64) {
	if n == nil || n.kind != KindSource || n.disposed.Load() {
		return
	}

	n.graph.enqueue(command{kind: cmdStop, node: n, at: n.graph.clock.FrameAt(at)})
}

func (n *Node) addParam(p Params, name string, def, minValue, maxValue float64) *Param {
	if v, ok := p.Values[name]; ok {
		def = v
	}

	param := newParam(n, name, def, minValue, maxValue)
	n.params[name] = param

	return param
}

func (n *Node) clearInput(frames int) {
	clear(n.in[0][:frames])
	clear(n.in[1][:frames])
}

func (n *Node) passThrough(frames int) {
	copy(n.out[0][:frames], n.in[0][:frames])
	copy(n.out[1][:frames], n.in[1][:frames])
}
