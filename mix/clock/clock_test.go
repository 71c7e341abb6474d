package clock

import (
	"sync"
	"testing"
)

func TestSampleClockAdvance(t *testing.T) {
	c := NewSampleClock(48000)
	if c.Now() != 0 {
		t.Fatalf("initial Now: got %v want 0", c.Now())
	}

	c.Advance(24000)
	c.Advance(24000)

	if c.Frames() != 48000 {
		t.Fatalf("Frames: got %d want 48000", c.Frames())
	}
	if c.Now() != 1 {
		t.Fatalf("Now: got %v want 1", c.Now())
	}
	if got := c.FrameAt(0.5); got != 24000 {
		t.Fatalf("FrameAt(0.5): got %d want 24000", got)
	}
}

func TestSampleClockConcurrentReaders(t *testing.T) {
	c := NewSampleClock(1000)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		last := 0.0
		for range 1000 {
			now := c.Now()
			if now < last {
				t.Errorf("clock went backwards: %v after %v", now, last)
				return
			}

			last = now
		}
	}()

	for range 1000 {
		c.Advance(1)
	}

	wg.Wait()
}
