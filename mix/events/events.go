// Package events is the engine's typed publish/subscribe surface.
package events

import (
	"sync"

	"github.com/cwbudde/algo-mixer/mix/project"
)

// Bus delivers values of one type to its subscribers. Publish calls the
// handlers synchronously, in subscription order, on the publishing
// goroutine. Handlers may subscribe or unsubscribe during delivery.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}

	s.once.Do(s.cancel)
}

// Subscribe registers fn.
func (b *Bus[T]) Subscribe(fn func(T)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})

	return &Subscription{cancel: func() { b.remove(id) }}
}

// Publish delivers v to every current subscriber.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	subs := make([]subscriber[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// TimeUpdate reports the session position in seconds.
type TimeUpdate struct {
	CurrentTime float64
}

// ClipEnded reports a clip whose playback finished or was stopped.
type ClipEnded struct {
	ClipID string
}

// TransitionCompleted reports the end of a transition. Cancelled is set
// when a newer transition or disposal interrupted it.
type TransitionCompleted struct {
	Spec      project.TransitionSpec
	Cancelled bool
}

// NodeError reports a clip that could not be scheduled.
type NodeError struct {
	ClipID string
	Reason string
}

// Hub groups the engine's buses.
type Hub struct {
	TimeUpdate          Bus[TimeUpdate]
	ClipEnded           Bus[ClipEnded]
	TransitionCompleted Bus[TransitionCompleted]
	NodeError           Bus[NodeError]
}

// NewHub returns a Hub without subscribers.
func NewHub() *Hub {
	return &Hub{}
}
