package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mixer/mix/clock"
)

const (
	// DefaultBlockSize is the render quantum in frames.
	DefaultBlockSize = 128

	defaultQueueSize = 1 << 15
	defaultEndedSize = 256
)

var (
	// ErrCycle is returned by Connect when the edge would close a loop.
	ErrCycle = errors.New("graph: connection would create a cycle")
	// ErrInvalidConnection is returned for edges the graph cannot hold.
	ErrInvalidConnection = errors.New("graph: invalid connection")
	// ErrUnknownKind is returned by CreateNode for unregistered kinds.
	ErrUnknownKind = errors.New("graph: unknown node kind")
	// ErrDisposed is returned when connecting a disposed node.
	ErrDisposed = errors.New("graph: node disposed")
)

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger for control-side diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.log = l
		}
	}
}

// WithRegistry replaces the node factories.
func WithRegistry(r *Registry) Option {
	return func(g *Graph) {
		if r != nil {
			g.registry = r
		}
	}
}

// WithQueueSize sets the command ring capacity, rounded up to a power of 2.
func WithQueueSize(n int) Option {
	return func(g *Graph) {
		size := 1
		for size < n {
			size <<= 1
		}

		g.queueSize = size
	}
}

// WithEndedBuffer sets the capacity of the Ended channel.
func WithEndedBuffer(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.endedSize = n
		}
	}
}

// plan is an immutable render schedule.
type plan struct {
	order  []*Node
	inputs [][]*Node
}

// Graph owns the nodes, their topology and the render loop.
type Graph struct {
	clock      *clock.SampleClock
	sampleRate float64
	blockSize  int
	log        *slog.Logger
	registry   *Registry
	queueSize  int
	endedSize  int

	mu     sync.Mutex
	nextID uint64
	nodes  map[uint64]*Node
	edges  map[*Node][]*Node
	dest   *Node

	plan    atomic.Pointer[plan]
	queue   *commandRing
	ended   chan *Node
	dropped atomic.Uint64
}

// New returns a graph rendering blockSize-frame quanta against clk. A
// blockSize <= 0 selects DefaultBlockSize.
func New(clk *clock.SampleClock, blockSize int, opts ...Option) *Graph {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	g := &Graph{
		clock:      clk,
		sampleRate: clk.SampleRate(),
		blockSize:  blockSize,
		log:        slog.Default(),
		registry:   DefaultRegistry(),
		queueSize:  defaultQueueSize,
		endedSize:  defaultEndedSize,
		nodes:      make(map[uint64]*Node),
		edges:      make(map[*Node][]*Node),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	g.queue = newCommandRing(g.queueSize)
	g.ended = make(chan *Node, g.endedSize)

	g.dest = newNode(g, g.allocID(), KindDestination)
	g.dest.proc = destinationProc{}
	g.nodes[g.dest.id] = g.dest
	g.publish()

	return g
}

// SampleRate returns the render sample rate.
func (g *Graph) SampleRate() float64 { return g.sampleRate }

// BlockSize returns the render quantum in frames.
func (g *Graph) BlockSize() int { return g.blockSize }

// Clock returns the audio clock advanced by Render.
func (g *Graph) Clock() *clock.SampleClock { return g.clock }

// Destination returns the node whose input is the graph output.
func (g *Graph) Destination() *Node { return g.dest }

// Ended delivers source nodes that finished playing. Delivery is best
// effort: notices are dropped while the channel is full.
func (g *Graph) Ended() <-chan *Node { return g.ended }

// Dropped returns how many commands and ended notices were discarded
// because their queue was full.
func (g *Graph) Dropped() uint64 { return g.dropped.Load() }

// Len returns the number of live nodes, the destination included.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.nodes)
}

// CreateNode builds a node of the given kind. It is not connected.
func (g *Graph) CreateNode(kind Kind, p Params) (*Node, error) {
	if kind == KindDestination {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	factory := g.registry.Lookup(kind)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	g.mu.Lock()
	id := g.allocID()
	g.mu.Unlock()

	n := newNode(g, id, kind)

	proc, err := factory(n, p)
	if err != nil {
		return nil, fmt.Errorf("create %s node: %w", kind, err)
	}

	n.proc = proc

	g.mu.Lock()
	g.nodes[id] = n
	g.publish()
	g.mu.Unlock()

	return n, nil
}

// Connect routes the output of src into the input of dst. Inputs sum.
// Connecting an existing edge again is a no-op.
func (g *Graph) Connect(src, dst *Node) error {
	if src == nil || dst == nil || src.graph != g || dst.graph != g {
		return ErrInvalidConnection
	}

	if src == dst || dst.kind == KindSource || src.kind == KindDestination {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConnection, src.kind, dst.kind)
	}

	if src.disposed.Load() || dst.disposed.Load() {
		return ErrDisposed
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, existing := range g.edges[src] {
		if existing == dst {
			return nil
		}
	}

	g.edges[src] = append(g.edges[src], dst)

	p, ok := g.compile()
	if !ok {
		g.removeEdge(src, dst)
		return ErrCycle
	}

	g.plan.Store(p)

	return nil
}

// Disconnect removes every outgoing edge of src.
func (g *Graph) Disconnect(src *Node) {
	if src == nil || src.graph != g {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.edges[src]) == 0 {
		return
	}

	delete(g.edges, src)
	g.publish()
}

// DisconnectFrom removes the edge src -> dst if present.
func (g *Graph) DisconnectFrom(src, dst *Node) {
	if src == nil || dst == nil || src.graph != g {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.removeEdge(src, dst) {
		g.publish()
	}
}

// Dispose disconnects n, removes it from the graph and turns every later
// call on it into a no-op. The destination cannot be disposed.
func (g *Graph) Dispose(n *Node) {
	if n == nil || n.graph != g || n == g.dest {
		return
	}

	if !n.disposed.CompareAndSwap(false, true) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.edges, n)
	for src := range g.edges {
		g.removeEdge(src, n)
	}

	delete(g.nodes, n.id)
	g.publish()
}

// Render fills left and right with the next len(left) frames of output and
// advances the clock. It runs on the audio thread and does not block.
func (g *Graph) Render(left, right []float64) {
	frames := min(len(left), len(right))

	for off := 0; off < frames; off += g.blockSize {
		n := min(g.blockSize, frames-off)
		g.renderQuantum(left[off:off+n], right[off:off+n], n)
	}
}

func (g *Graph) renderQuantum(left, right []float64, frames int) {
	start := g.clock.Frames()

	g.queue.drain(func(cmd *command) { g.apply(cmd) })

	p := g.plan.Load()
	for i, node := range p.order {
		node.clearInput(frames)

		for _, src := range p.inputs[i] {
			vecmath.AddBlockInPlace(node.in[0][:frames], src.out[0][:frames])
			vecmath.AddBlockInPlace(node.in[1][:frames], src.out[1][:frames])
		}

		node.proc.process(node, start, frames)
	}

	copy(left, g.dest.out[0][:frames])
	copy(right, g.dest.out[1][:frames])

	g.clock.Advance(frames)
}

// apply executes one drained command. Render side.
func (g *Graph) apply(cmd *command) {
	switch cmd.kind {
	case cmdAutomate:
		if cmd.param.node.disposed.Load() {
			return
		}

		cmd.param.schedule(cmd.ev)
	case cmdStart:
		if src, ok := cmd.node.proc.(*sourceProc); ok && !cmd.node.disposed.Load() {
			src.start(cmd.at, cmd.offset, cmd.duration)
		}
	case cmdStop:
		if src, ok := cmd.node.proc.(*sourceProc); ok && !cmd.node.disposed.Load() {
			if src.stop(cmd.at) {
				g.notifyEnded(cmd.node)
			}
		}
	}
}

func (g *Graph) enqueue(cmd command) {
	if g.queue.push(cmd) {
		return
	}

	g.dropped.Add(1)
	g.log.Warn("graph command queue full, dropping command",
		"node", cmd.nodeKind(), "pending", g.queue.pending())
}

func (g *Graph) notifyEnded(n *Node) {
	select {
	case g.ended <- n:
	default:
		g.dropped.Add(1)
	}
}

func (cmd *command) nodeKind() string {
	switch {
	case cmd.node != nil:
		return cmd.node.kind.String()
	case cmd.param != nil:
		return cmd.param.node.kind.String()
	default:
		return ""
	}
}

func (g *Graph) allocID() uint64 {
	g.nextID++
	return g.nextID
}

func (g *Graph) removeEdge(src, dst *Node) bool {
	outs := g.edges[src]
	for i, n := range outs {
		if n == dst {
			outs = append(outs[:i], outs[i+1:]...)
			if len(outs) == 0 {
				delete(g.edges, src)
			} else {
				g.edges[src] = outs
			}

			return true
		}
	}

	return false
}

// publish compiles and stores the current topology. Callers hold g.mu and
// know the topology is acyclic.
func (g *Graph) publish() {
	p, _ := g.compile()
	g.plan.Store(p)
}

// compile orders the nodes with Kahn's algorithm. ok is false on a cycle.
// Callers hold g.mu.
func (g *Graph) compile() (*plan, bool) {
	indegree := make(map[*Node]int, len(g.nodes))
	incoming := make(map[*Node][]*Node, len(g.nodes))

	for _, n := range g.nodes {
		indegree[n] = 0
	}

	for src, outs := range g.edges {
		for _, dst := range outs {
			indegree[dst]++
			incoming[dst] = append(incoming[dst], src)
		}
	}

	queue := make([]*Node, 0, len(g.nodes))
	for n, d := range indegree {
		if d == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		order = append(order, n)
		for _, dst := range g.edges[n] {
			indegree[dst]--
			if indegree[dst] == 0 {
				queue = append(queue, dst)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, false
	}

	p := &plan{order: order, inputs: make([][]*Node, len(order))}
	for i, n := range order {
		p.inputs[i] = incoming[n]
	}

	return p, true
}
