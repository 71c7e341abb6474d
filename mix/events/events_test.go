package events

import "testing"

func TestBusDeliversInOrder(t *testing.T) {
	var b Bus[int]

	var got []int
	b.Subscribe(func(v int) { got = append(got, v) })
	b.Subscribe(func(v int) { got = append(got, v*10) })

	b.Publish(3)

	if len(got) != 2 || got[0] != 3 || got[1] != 30 {
		t.Fatalf("delivery: got %v want [3 30]", got)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	var b Bus[string]

	calls := 0
	sub := b.Subscribe(func(string) { calls++ })
	other := b.Subscribe(func(string) {})

	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish("x")

	if calls != 0 {
		t.Fatalf("calls after unsubscribe: got %d want 0", calls)
	}

	if b.Len() != 1 {
		t.Fatalf("Len: got %d want 1", b.Len())
	}

	other.Unsubscribe()

	var nilSub *Subscription
	nilSub.Unsubscribe()
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	var b Bus[int]

	var sub *Subscription

	calls := 0
	sub = b.Subscribe(func(int) {
		calls++
		sub.Unsubscribe()
	})

	b.Publish(1)
	b.Publish(2)

	if calls != 1 {
		t.Fatalf("calls: got %d want 1", calls)
	}
}

func TestHubBuses(t *testing.T) {
	h := NewHub()

	var ended ClipEnded
	h.ClipEnded.Subscribe(func(e ClipEnded) { ended = e })
	h.ClipEnded.Publish(ClipEnded{ClipID: "c1"})

	if ended.ClipID != "c1" {
		t.Fatalf("ClipEnded: got %q want c1", ended.ClipID)
	}
}
