package graph

import (
	"math"

	"github.com/cwbudde/algo-mixer/dsp/interp"
)

type sourceState uint8

const (
	sourceIdle sourceState = iota
	sourceScheduled
	sourcePlaying
	sourceEnded
)

// sourceProc plays a Buffer once, resampling linearly to the graph rate.
type sourceProc struct {
	buf   *Buffer
	step  float64
	state sourceState

	startFrame int64
	stopFrame  int64
	pos        float64
	endPos     float64
}

func newSourceProc(buf *Buffer, sampleRate float64) *sourceProc {
	return &sourceProc{
		buf:       buf,
		step:      buf.SampleRate / sampleRate,
		stopFrame: math.MaxInt64,
	}
}

func (p *sourceProc) start(at int64, offset, duration float64) {
	if p.state != sourceIdle {
		return
	}

	frames := float64(p.buf.Frames())

	p.pos = math.Max(0, offset) * p.buf.SampleRate
	p.endPos = frames
	if duration > 0 {
		p.endPos = math.Min(frames, p.pos+duration*p.buf.SampleRate)
	}

	p.startFrame = at
	p.state = sourceScheduled
}

// stop reports whether the source ended right away.
func (p *sourceProc) stop(at int64) bool {
	switch p.state {
	case sourceIdle:
		p.state = sourceEnded
		return true
	case sourceEnded:
		return false
	}

	if at < p.stopFrame {
		p.stopFrame = at
	}

	return false
}

func (p *sourceProc) process(n *Node, start int64, frames int) {
	outL, outR := n.out[0][:frames], n.out[1][:frames]
	clear(outL)
	clear(outR)

	if p.state == sourceIdle || p.state == sourceEnded {
		return
	}

	left, right := p.buf.channel(0), p.buf.channel(1)

	for i := 0; i < frames; i++ {
		f := start + int64(i)

		if p.state == sourceScheduled {
			if f < p.startFrame {
				continue
			}

			p.state = sourcePlaying
		}

		if f >= p.stopFrame || p.pos >= p.endPos {
			p.state = sourceEnded
			n.graph.notifyEnded(n)

			return
		}

		outL[i] = interp.At(interp.Linear, left, p.pos)
		outR[i] = interp.At(interp.Linear, right, p.pos)
		p.pos += p.step
	}

	// A buffer that runs out exactly on the block edge ends here rather
	// than one block late.
	if p.state == sourcePlaying && p.pos >= p.endPos {
		p.state = sourceEnded
		n.graph.notifyEnded(n)
	}
}
