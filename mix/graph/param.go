package graph

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// settleEpsilon is the distance at which an exponential approach snaps to
// its target.
const settleEpsilon = 1e-7

// maxPendingEvents bounds the automation queue of one parameter. The
// render path never grows it.
const maxPendingEvents = 32

type eventKind uint8

const (
	eventSet eventKind = iota
	eventTarget
	eventRamp
)

type event struct {
	kind  eventKind
	at    int64
	end   int64
	value float64
	tc    float64
}

type automationMode uint8

const (
	modeHold automationMode = iota
	modeTarget
	modeRamp
)

// Param is an automatable node parameter. All exported methods are control
// side: they enqueue automation for the render path and return immediately.
// Values are clamped to the parameter range. A nil Param, or one whose node
// has been disposed, ignores every call.
type Param struct {
	name     string
	min, max float64
	node     *Node

	last atomic.Uint64

	// render-owned
	value     float64
	mode      automationMode
	target    float64
	coeff     float64
	rampFrom  float64
	rampTo    float64
	rampStart int64
	rampEnd   int64
	events    []event
	buf       []float64
}

func newParam(n *Node, name string, def, minValue, maxValue float64) *Param {
	p := &Param{
		name:   name,
		min:    minValue,
		max:    maxValue,
		node:   n,
		events: make([]event, 0, maxPendingEvents),
		buf:    make([]float64, n.graph.blockSize),
	}
	p.value = p.clamp(def)
	p.last.Store(math.Float64bits(p.value))

	return p
}

// Name returns the parameter name.
func (p *Param) Name() string {
	if p == nil {
		return ""
	}

	return p.name
}

// Range returns the accepted value range.
func (p *Param) Range() (float64, float64) {
	if p == nil {
		return 0, 0
	}

	return p.min, p.max
}

// Value returns the value reached at the end of the last rendered block.
func (p *Param) Value() float64 {
	if p == nil {
		return 0
	}

	return math.Float64frombits(p.last.Load())
}

// SetImmediate jumps to v at the next rendered frame.
func (p *Param) SetImmediate(v float64) {
	if !p.live() {
		return
	}

	p.push(event{kind: eventSet, at: p.now(), value: p.clamp(v)})
}

// SetSmoothed approaches v exponentially with time constant tc seconds,
// starting at the next rendered frame. tc <= 0 behaves like SetImmediate.
func (p *Param) SetSmoothed(v, tc float64) {
	if !p.live() {
		return
	}

	p.push(event{kind: eventTarget, at: p.now(), value: p.clamp(v), tc: tc})
}

// SetAt jumps to v at audio-clock time t.
func (p *Param) SetAt(v, t float64) {
	if !p.live() {
		return
	}

	p.push(event{kind: eventSet, at: p.frameAt(t), value: p.clamp(v)})
}

// SmoothAt starts an exponential approach to v at audio-clock time t.
func (p *Param) SmoothAt(v, t, tc float64) {
	if !p.live() {
		return
	}

	p.push(event{kind: eventTarget, at: p.frameAt(t), value: p.clamp(v), tc: tc})
}

// RampAt ramps linearly from whatever value the parameter holds at start to
// v at end. Both times are on the audio clock.
func (p *Param) RampAt(v, start, end float64) {
	if !p.live() {
		return
	}

	p.push(event{kind: eventRamp, at: p.frameAt(start), end: p.frameAt(end), value: p.clamp(v)})
}

func (p *Param) live() bool {
	return p != nil && !p.node.disposed.Load()
}

func (p *Param) now() int64 {
	return p.node.graph.clock.Frames()
}

func (p *Param) frameAt(t float64) int64 {
	return p.node.graph.clock.FrameAt(t)
}

func (p *Param) push(ev event) {
	p.node.graph.enqueue(command{kind: cmdAutomate, param: p, ev: ev})
}

func (p *Param) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.min
	}

	return core.Clamp(v, p.min, p.max)
}

// schedule inserts ev after every pending event at the same or an earlier
// frame. Pending events at the same frame that ev fully overrides are
// dropped. When the queue is full the earliest event is applied ahead of
// its frame. Render side.
func (p *Param) schedule(ev event) {
	i := len(p.events)
	for i > 0 && p.events[i-1].at > ev.at {
		i--
	}

	for i > 0 && p.events[i-1].at == ev.at && overrides(ev, p.events[i-1]) {
		p.events = append(p.events[:i-1], p.events[i:]...)
		i--
	}

	if len(p.events) == cap(p.events) {
		p.apply(p.events[0])
		p.events = append(p.events[:0], p.events[1:]...)
		i = max(i-1, 0)
	}

	p.events = p.events[:len(p.events)+1]
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

// overrides reports whether applying next right after prev, on the same
// frame, leaves no trace of prev.
func overrides(next, prev event) bool {
	switch {
	case next.kind == eventSet:
		return true
	case prev.kind == eventTarget:
		return true
	case prev.kind == eventRamp:
		return prev.end > prev.at
	default:
		return false
	}
}

// fill renders n values starting at frame start into the param buffer. The
// second result reports that every value equals the first one.
func (p *Param) fill(start int64, n int) ([]float64, bool) {
	buf := p.buf[:n]
	end := start + int64(n)

	if p.mode == modeHold && (len(p.events) == 0 || p.events[0].at >= end) {
		for i := range buf {
			buf[i] = p.value
		}

		p.last.Store(math.Float64bits(p.value))

		return buf, true
	}

	for i := range buf {
		f := start + int64(i)
		for len(p.events) > 0 && p.events[0].at <= f {
			p.apply(p.events[0])
			p.events = append(p.events[:0], p.events[1:]...)
		}

		buf[i] = p.step(f)
	}

	p.last.Store(math.Float64bits(p.value))

	return buf, false
}

// control returns the value for the first frame of a block. Processors
// that update coefficients per block use it instead of fill.
func (p *Param) control(start int64, n int) float64 {
	buf, _ := p.fill(start, n)
	return buf[0]
}

func (p *Param) apply(ev event) {
	switch ev.kind {
	case eventSet:
		p.value = ev.value
		p.mode = modeHold
	case eventTarget:
		coeff := core.SmoothingCoeff(ev.tc, p.node.graph.sampleRate)
		if coeff >= 1 {
			p.value = ev.value
			p.mode = modeHold

			return
		}

		p.target = ev.value
		p.coeff = coeff
		p.mode = modeTarget
	case eventRamp:
		if ev.end <= ev.at {
			p.value = ev.value
			p.mode = modeHold

			return
		}

		p.rampFrom = p.value
		p.rampTo = ev.value
		p.rampStart = ev.at
		p.rampEnd = ev.end
		p.mode = modeRamp
	}
}

func (p *Param) step(f int64) float64 {
	switch p.mode {
	case modeTarget:
		p.value += p.coeff * (p.target - p.value)
		if math.Abs(p.target-p.value) < settleEpsilon {
			p.value = p.target
			p.mode = modeHold
		}
	case modeRamp:
		if f >= p.rampEnd {
			p.value = p.rampTo
			p.mode = modeHold

			break
		}

		frac := float64(f-p.rampStart) / float64(p.rampEnd-p.rampStart)
		p.value = p.rampFrom + (p.rampTo-p.rampFrom)*frac
	}

	return p.value
}
