package graph

import "testing"

func TestCommandRingOrderAndCapacity(t *testing.T) {
	r := newCommandRing(4)

	for i := range 4 {
		if !r.push(command{at: int64(i)}) {
			t.Fatalf("push %d: ring reported full", i)
		}
	}

	if r.push(command{at: 4}) {
		t.Fatal("push into full ring: want false")
	}

	var got []int64
	r.drain(func(c *command) { got = append(got, c.at) })

	if len(got) != 4 {
		t.Fatalf("drained: got %d want 4", len(got))
	}

	for i, at := range got {
		if at != int64(i) {
			t.Fatalf("order: got %v", got)
		}
	}

	if r.pending() != 0 {
		t.Fatalf("pending after drain: got %d want 0", r.pending())
	}
}

func TestCommandRingConcurrentProducers(t *testing.T) {
	r := newCommandRing(1 << 12)
	done := make(chan struct{})

	for p := range 4 {
		go func() {
			for i := range 500 {
				for !r.push(command{at: int64(p*1000 + i)}) {
				}
			}
			done <- struct{}{}
		}()
	}

	count := 0
	for finished := 0; finished < 4; {
		select {
		case <-done:
			finished++
		default:
		}

		r.drain(func(*command) { count++ })
	}

	r.drain(func(*command) { count++ })

	if count != 2000 {
		t.Fatalf("drained: got %d want 2000", count)
	}
}
