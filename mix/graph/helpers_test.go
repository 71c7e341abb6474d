package graph

import (
	"testing"

	"github.com/cwbudde/algo-mixer/mix/clock"
)

const testRate = 1000.0

func newTestGraph(t *testing.T) *Graph {
	t.Helper()

	return New(clock.NewSampleClock(testRate), 100)
}

func constBuffer(t *testing.T, value float32, frames int) *Buffer {
	t.Helper()

	data := make([]float32, frames)
	for i := range data {
		data[i] = value
	}

	buf, err := NewBuffer(testRate, data)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	return buf
}

func rampBuffer(t *testing.T, sampleRate float64, frames int) *Buffer {
	t.Helper()

	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(i)
	}

	buf, err := NewBuffer(sampleRate, data, data)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	return buf
}

// dcSource returns a started source emitting 1.0 for 10 seconds.
func dcSource(t *testing.T, g *Graph) *Node {
	t.Helper()

	src, err := g.CreateNode(KindSource, Params{Buffer: constBuffer(t, 1, 10000)})
	if err != nil {
		t.Fatalf("CreateNode(source): %v", err)
	}

	src.Start(0, 0, 0)

	return src
}

func mustNode(t *testing.T, g *Graph, kind Kind, p Params) *Node {
	t.Helper()

	n, err := g.CreateNode(kind, p)
	if err != nil {
		t.Fatalf("CreateNode(%s): %v", kind, err)
	}

	return n
}

func mustConnect(t *testing.T, g *Graph, src, dst *Node) {
	t.Helper()

	if err := g.Connect(src, dst); err != nil {
		t.Fatalf("Connect(%s, %s): %v", src.Kind(), dst.Kind(), err)
	}
}

func render(g *Graph, frames int) ([]float64, []float64) {
	left := make([]float64, frames)
	right := make([]float64, frames)
	g.Render(left, right)

	return left, right
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}

	return x
}
