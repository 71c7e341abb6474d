package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"
)

// DefaultBitrate is the Opus bitrate of a peer stream.
const DefaultBitrate = 128000

// opusRates are the sample rates libopus accepts.
var opusRates = []int{8000, 12000, 16000, 24000, 48000}

// WebRTCOption configures a WebRTCHandler.
type WebRTCOption func(*WebRTCHandler)

// WithBitrate sets the Opus bitrate in bits per second.
func WithBitrate(bps int) WebRTCOption {
	return func(h *WebRTCHandler) {
		if bps > 0 {
			h.bitrate = bps
		}
	}
}

// WithICEServers sets the STUN/TURN servers offered to peers.
func WithICEServers(urls ...string) WebRTCOption {
	return func(h *WebRTCHandler) {
		if len(urls) > 0 {
			h.config.ICEServers = []webrtc.ICEServer{{URLs: urls}}
		}
	}
}

// WithWebRTCLogger sets the logger.
func WithWebRTCLogger(l *slog.Logger) WebRTCOption {
	return func(h *WebRTCHandler) {
		if l != nil {
			h.log = l
		}
	}
}

// WebRTCHandler serves WebRTC SDP negotiation and streams the broadcast to
// each peer as Opus.
type WebRTCHandler struct {
	broadcaster   *Broadcaster
	sampleRate    int
	frameDuration time.Duration
	bitrate       int
	config        webrtc.Configuration
	log           *slog.Logger

	mu    sync.Mutex
	peers []*webrtc.PeerConnection
}

// NewWebRTCHandler creates a handler for stereo frames of frameDuration at
// sampleRate.
func NewWebRTCHandler(b *Broadcaster, sampleRate int, frameDuration time.Duration, opts ...WebRTCOption) (*WebRTCHandler, error) {
	if !slices.Contains(opusRates, sampleRate) {
		return nil, fmt.Errorf("stream: opus does not support %d Hz", sampleRate)
	}

	switch frameDuration {
	case 2500 * time.Microsecond, 5 * time.Millisecond, 10 * time.Millisecond,
		20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond:
	default:
		return nil, fmt.Errorf("stream: opus does not support %v frames", frameDuration)
	}

	h := &WebRTCHandler{
		broadcaster:   b,
		sampleRate:    sampleRate,
		frameDuration: frameDuration,
		bitrate:       DefaultBitrate,
		log:           slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.peers)
}

// Close disconnects every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = nil
	h.mu.Unlock()

	for _, pc := range peers {
		if err := pc.Close(); err != nil {
			h.log.Warn("close peer", "error", err)
		}
	}
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)

		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	answer, status, err := h.negotiate(offer)
	if err != nil {
		h.log.Warn("webrtc negotiation failed", "error", err)
		http.Error(w, err.Error(), status)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := json.NewEncoder(w).Encode(answer); err != nil {
		h.log.Warn("write answer", "error", err)
	}
}

func (h *WebRTCHandler) negotiate(offer webrtc.SessionDescription) (*webrtc.SessionDescription, int, error) {
	pc, err := webrtc.NewPeerConnection(h.config)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		"master",
	)
	if err != nil {
		pc.Close()
		return nil, http.StatusInternalServerError, fmt.Errorf("create audio track: %w", err)
	}

	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, http.StatusInternalServerError, fmt.Errorf("add track: %w", err)
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, http.StatusBadRequest, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, http.StatusInternalServerError, fmt.Errorf("create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)

	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, http.StatusInternalServerError, fmt.Errorf("set local description: %w", err)
	}

	<-gatherComplete

	h.mu.Lock()
	h.peers = append(h.peers, pc)
	h.mu.Unlock()

	h.log.Info("webrtc peer connected", "peers", h.PeerCount())

	listener := h.broadcaster.Subscribe()
	go h.streamToPeer(listener, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			h.broadcaster.Unsubscribe(listener)
			h.removePeer(pc)
			pc.Close()
			h.log.Info("webrtc peer disconnected", "state", s.String(), "peers", h.PeerCount())
		}
	})

	return pc.LocalDescription(), http.StatusOK, nil
}

func (h *WebRTCHandler) streamToPeer(listener *Listener, track *webrtc.TrackLocalStaticSample) {
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(h.sampleRate, 2, opus.AppAudio)
	if err != nil {
		h.log.Error("opus encoder", "error", err)
		return
	}

	if err := enc.SetBitrate(h.bitrate); err != nil {
		h.log.Warn("opus bitrate", "bitrate", h.bitrate, "error", err)
	}

	packet := make([]byte, 4000)

	for {
		select {
		case <-listener.Done():
			return
		case frame := <-listener.C:
			n, err := enc.Encode(frame, packet)
			if err != nil {
				h.log.Warn("opus encode", "error", err)
				continue
			}

			if err := track.WriteSample(media.Sample{
				Data:     packet[:n],
				Duration: h.frameDuration,
			}); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i := slices.Index(h.peers, pc); i >= 0 {
		h.peers = slices.Delete(h.peers, i, i+1)
	}
}
