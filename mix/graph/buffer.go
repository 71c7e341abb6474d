package graph

import "errors"

// ErrEmptyBuffer is returned for buffers without channels or frames.
var ErrEmptyBuffer = errors.New("graph: empty buffer")

// Buffer is decoded audio, one slice per channel, shared read-only by any
// number of source nodes.
type Buffer struct {
	SampleRate float64
	Channels   [][]float32
}

// NewBuffer validates channel layout and returns a Buffer.
func NewBuffer(sampleRate float64, channels ...[]float32) (*Buffer, error) {
	if sampleRate <= 0 || len(channels) == 0 || len(channels[0]) == 0 {
		return nil, ErrEmptyBuffer
	}

	for _, ch := range channels[1:] {
		if len(ch) != len(channels[0]) {
			return nil, errors.New("graph: buffer channels differ in length")
		}
	}

	return &Buffer{SampleRate: sampleRate, Channels: channels}, nil
}

// Frames returns the length in frames.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}

	return len(b.Channels[0])
}

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}

	return float64(b.Frames()) / b.SampleRate
}

// channel returns the slice feeding output channel ch; mono buffers feed
// both outputs.
func (b *Buffer) channel(ch int) []float32 {
	if ch < len(b.Channels) {
		return b.Channels[ch]
	}

	return b.Channels[0]
}
