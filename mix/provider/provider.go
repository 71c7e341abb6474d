package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cwbudde/algo-mixer/mix/graph"
)

var (
	// ErrBufferNotFound is returned for an unknown source id.
	ErrBufferNotFound = errors.New("provider: buffer not found")
	// ErrUnsupportedFormat is returned for a file no decoder handles.
	ErrUnsupportedFormat = errors.New("provider: unsupported format")
)

// Provider loads the decoded audio of a source.
type Provider interface {
	LoadBuffer(ctx context.Context, sourceID string) (*graph.Buffer, error)
}

// Memory serves buffers registered with Put.
type Memory struct {
	mu   sync.RWMutex
	bufs map[string]*graph.Buffer
}

// NewMemory returns an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{bufs: make(map[string]*graph.Buffer)}
}

// Put registers buf under sourceID, replacing any previous buffer.
func (m *Memory) Put(sourceID string, buf *graph.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bufs[sourceID] = buf
}

// Delete removes sourceID.
func (m *Memory) Delete(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.bufs, sourceID)
}

// LoadBuffer implements Provider.
func (m *Memory) LoadBuffer(ctx context.Context, sourceID string) (*graph.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	buf, ok := m.bufs[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBufferNotFound, sourceID)
	}

	return buf, nil
}
