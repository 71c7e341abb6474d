package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cwbudde/algo-mixer/mix/events"
)

type eventMessage struct {
	name string
	data any
}

// events streams engine notifications as server-sent events. Slow clients
// lose messages instead of stalling the publisher.
func (a *api) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := make(chan eventMessage, 64)
	send := func(name string) func(any) {
		return func(v any) {
			select {
			case ch <- eventMessage{name, v}:
			default:
			}
		}
	}

	hub := a.e.Events()
	subs := []*events.Subscription{
		hub.TimeUpdate.Subscribe(func(ev events.TimeUpdate) { send("timeUpdate")(ev) }),
		hub.ClipEnded.Subscribe(func(ev events.ClipEnded) { send("clipEnded")(ev) }),
		hub.TransitionCompleted.Subscribe(func(ev events.TransitionCompleted) { send("transitionCompleted")(ev) }),
		hub.NodeError.Subscribe(func(ev events.NodeError) { send("nodeError")(ev) }),
	}
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			data, err := json.Marshal(msg.data)
			if err != nil {
				a.log.Warn("encode event", "event", msg.name, "error", err)
				continue
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.name, data); err != nil {
				return
			}

			flusher.Flush()
		}
	}
}
