package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cwbudde/algo-mixer/mix/engine"
	"github.com/cwbudde/algo-mixer/mix/project"
	"github.com/cwbudde/algo-mixer/mix/scheduler"
	"github.com/cwbudde/algo-mixer/mix/trackmix"
)

const maxProjectBytes = 4 << 20

// api is the JSON control surface of one engine.
type api struct {
	e   *engine.Engine
	log *slog.Logger
}

type transportRequest struct {
	Action string  `json:"action"`
	Time   float64 `json:"time,omitempty"`
}

type crossfaderRequest struct {
	Position *float64                 `json:"position,omitempty"`
	Curve    *project.CrossfaderCurve `json:"curve,omitempty"`
	CutLag   *float64                 `json:"cutLag,omitempty"`
}

type deckRequest struct {
	Volume          *float64                 `json:"volume,omitempty"`
	EQ              *project.EQSettings      `json:"eq,omitempty"`
	Effects         *project.EffectsSettings `json:"effects,omitempty"`
	DelayTime       *float64                 `json:"delayTime,omitempty"`
	DelayFeedback   *float64                 `json:"delayFeedback,omitempty"`
	FlangerFeedback *float64                 `json:"flangerFeedback,omitempty"`
}

type trackRequest struct {
	Volume  float64 `json:"volume"`
	Pan     float64 `json:"pan"`
	IsMuted bool    `json:"isMuted"`
	IsSolo  bool    `json:"isSolo"`
}

type masterRequest struct {
	Volume float64 `json:"volume"`
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", a.state)
	mux.HandleFunc("PUT /api/project", a.loadProject)
	mux.HandleFunc("POST /api/transport", a.transport)
	mux.HandleFunc("POST /api/master", a.master)
	mux.HandleFunc("POST /api/crossfader", a.crossfader)
	mux.HandleFunc("POST /api/decks/{deck}", a.deck)
	mux.HandleFunc("POST /api/tracks/{id}", a.track)
	mux.HandleFunc("POST /api/transition", a.transition)
	mux.HandleFunc("DELETE /api/transition", a.cancelTransition)
	mux.HandleFunc("GET /api/events", a.events)
}

func (a *api) state(w http.ResponseWriter, _ *http.Request) {
	a.reply(w, http.StatusOK, a.e.State())
}

func (a *api) loadProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxProjectBytes))
	if err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return
	}

	// YAML is a superset of JSON, so both encodings are accepted.
	p, err := project.Parse(data)
	if err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return
	}

	if err := a.e.Load(p); err != nil {
		a.fail(w, status(err), err)
		return
	}

	a.reply(w, http.StatusOK, a.e.State())
}

func (a *api) transport(w http.ResponseWriter, r *http.Request) {
	var req transportRequest
	if !a.decode(w, r, &req) {
		return
	}

	switch req.Action {
	case "play":
		if err := a.e.Play(); err != nil {
			a.fail(w, status(err), err)
			return
		}
	case "pause":
		a.e.Pause()
	case "stop":
		a.e.Stop()
	case "seek":
		a.e.Seek(req.Time)
	default:
		a.fail(w, http.StatusBadRequest, fmt.Errorf("unknown transport action %q", req.Action))
		return
	}

	a.reply(w, http.StatusOK, a.e.State())
}

func (a *api) master(w http.ResponseWriter, r *http.Request) {
	var req masterRequest
	if !a.decode(w, r, &req) {
		return
	}

	a.e.SetMasterVolume(req.Volume)
	a.reply(w, http.StatusOK, a.e.State())
}

func (a *api) crossfader(w http.ResponseWriter, r *http.Request) {
	var req crossfaderRequest
	if !a.decode(w, r, &req) {
		return
	}

	if req.Curve != nil {
		if err := a.e.SetCrossfaderCurve(*req.Curve); err != nil {
			a.fail(w, http.StatusBadRequest, err)
			return
		}
	}

	if req.CutLag != nil {
		a.e.SetCutLag(*req.CutLag)
	}

	if req.Position != nil {
		a.e.SetCrossfaderPosition(*req.Position)
	}

	a.reply(w, http.StatusOK, a.e.State().Crossfader)
}

func (a *api) deck(w http.ResponseWriter, r *http.Request) {
	d, err := project.ParseDeck(r.PathValue("deck"))
	if err != nil {
		a.fail(w, http.StatusNotFound, err)
		return
	}

	var req deckRequest
	if !a.decode(w, r, &req) {
		return
	}

	steps := []func() error{}

	if req.Volume != nil {
		steps = append(steps, func() error { return a.e.SetChannelVolume(d, *req.Volume) })
	}

	if req.EQ != nil {
		steps = append(steps, func() error { return a.e.SetEQ(d, *req.EQ) })
	}

	if req.Effects != nil {
		steps = append(steps, func() error { return a.e.SetEffects(d, *req.Effects) })
	}

	if req.DelayTime != nil {
		steps = append(steps, func() error { return a.e.SetDelayTime(d, *req.DelayTime) })
	}

	if req.DelayFeedback != nil {
		steps = append(steps, func() error { return a.e.SetDelayFeedback(d, *req.DelayFeedback) })
	}

	if req.FlangerFeedback != nil {
		steps = append(steps, func() error { return a.e.SetFlangerFeedback(d, *req.FlangerFeedback) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			a.fail(w, status(err), err)
			return
		}
	}

	a.reply(w, http.StatusOK, a.e.State().Decks[d])
}

func (a *api) track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.e.SetTrackSettings(r.PathValue("id"), req.Volume, req.Pan, req.IsMuted, req.IsSolo); err != nil {
		a.fail(w, status(err), err)
		return
	}

	a.reply(w, http.StatusOK, a.e.State().Tracks)
}

func (a *api) transition(w http.ResponseWriter, r *http.Request) {
	var spec project.TransitionSpec
	if !a.decode(w, r, &spec) {
		return
	}

	if err := a.e.PerformTransition(spec); err != nil {
		a.fail(w, status(err), err)
		return
	}

	a.reply(w, http.StatusAccepted, spec)
}

func (a *api) cancelTransition(w http.ResponseWriter, _ *http.Request) {
	a.e.CancelTransition()
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		a.fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}

	return true
}

func (a *api) reply(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("write response", "error", err)
	}
}

func (a *api) fail(w http.ResponseWriter, code int, err error) {
	a.log.Debug("request failed", "status", code, "error", err)
	a.reply(w, code, map[string]string{"error": err.Error()})
}

func status(err error) int {
	switch {
	case errors.Is(err, engine.ErrDisposed):
		return http.StatusServiceUnavailable
	case errors.Is(err, project.ErrUnknownDeck), errors.Is(err, trackmix.ErrUnknownTrack):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrNoProject):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
