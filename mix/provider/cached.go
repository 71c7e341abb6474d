package provider

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cwbudde/algo-mixer/mix/graph"
)

// Cached memoizes decoded buffers of another provider. Concurrent loads
// of one source share a single call; failures are not cached.
type Cached struct {
	next  Provider
	group singleflight.Group

	mu   sync.RWMutex
	bufs map[string]*graph.Buffer
}

// NewCached wraps next.
func NewCached(next Provider) *Cached {
	return &Cached{next: next, bufs: make(map[string]*graph.Buffer)}
}

// LoadBuffer implements Provider.
func (c *Cached) LoadBuffer(ctx context.Context, sourceID string) (*graph.Buffer, error) {
	c.mu.RLock()
	buf, ok := c.bufs[sourceID]
	c.mu.RUnlock()

	if ok {
		return buf, nil
	}

	v, err, _ := c.group.Do(sourceID, func() (any, error) {
		buf, err := c.next.LoadBuffer(ctx, sourceID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.bufs[sourceID] = buf
		c.mu.Unlock()

		return buf, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*graph.Buffer), nil
}

// Evict drops sourceID from the cache.
func (c *Cached) Evict(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.bufs, sourceID)
}

// Len returns the number of cached buffers.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.bufs)
}
