// Package stream publishes the master bus to network listeners.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultListenerQueue is about three seconds of 20 ms frames.
const DefaultListenerQueue = 150

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	queue     int
}

// Listener receives interleaved stereo PCM frames from the broadcaster.
type Listener struct {
	C       chan []int16
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// Done is closed when the listener is unsubscribed or the broadcast ends.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped returns how many frames the listener was too slow for.
func (l *Listener) Dropped() uint64 { return l.dropped.Load() }

func (l *Listener) close() {
	l.once.Do(func() { close(l.done) })
}

// NewBroadcaster creates a broadcaster whose listeners queue up to queue
// frames. queue <= 0 selects DefaultListenerQueue.
func NewBroadcaster(queue int) *Broadcaster {
	if queue <= 0 {
		queue = DefaultListenerQueue
	}

	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
		queue:     queue,
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, b.queue),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()

	return l
}

// Unsubscribe removes a listener and signals it to stop. It is idempotent.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()

	l.close()
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.listeners)
}

// Run reads frames from source and fans out to all listeners until ctx is
// done or source closes; then every listener is released.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	defer b.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}

			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for l := range b.listeners {
		l.close()
		delete(b.listeners, l)
	}
}
