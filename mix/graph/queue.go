package graph

import (
	"sync"
	"sync/atomic"
)

type commandKind uint8

const (
	cmdAutomate commandKind = iota
	cmdStart
	cmdStop
)

type command struct {
	kind  commandKind
	param *Param
	node  *Node
	ev    event

	// cmdStart / cmdStop
	at       int64
	offset   float64
	duration float64
}

// commandRing is a lock-free single-consumer queue. Producers serialize on
// a mutex so any number of control goroutines can push; the render path is
// the only reader.
type commandRing struct {
	mu          sync.Mutex
	commands    []command
	read, write atomic.Uint32
}

func newCommandRing(size int) *commandRing {
	if size <= 0 || size&(size-1) != 0 {
		panic("command ring size must be a power of 2")
	}

	return &commandRing{commands: make([]command, size)}
}

// push appends cmd and reports false when the ring is full.
func (r *commandRing) push(cmd command) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	write := r.write.Load()
	if write-r.read.Load() == uint32(len(r.commands)) {
		return false
	}

	r.commands[write%uint32(len(r.commands))] = cmd
	r.write.Store(write + 1)

	return true
}

// drain hands every queued command to f in push order.
func (r *commandRing) drain(f func(*command)) {
	read := r.read.Load()
	write := r.write.Load()

	for read != write {
		slot := &r.commands[read%uint32(len(r.commands))]
		f(slot)
		*slot = command{}
		read++
	}

	r.read.Store(read)
}

// pending returns the number of queued commands.
func (r *commandRing) pending() int {
	return int(r.write.Load() - r.read.Load())
}
