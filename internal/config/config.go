// Package config loads the runtime settings of the mixer commands from
// MIXER_* environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/algo-mixer/mix/engine"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Engine
	SampleRate      float64
	BlockSize       int
	Lookahead       float64       // seconds
	TickInterval    time.Duration // scheduler period
	TransitionSteps int
	ReverbSeconds   float64

	// Media
	MediaRoot string // directory source ids resolve under

	// Output
	FrameDuration time.Duration // live output frame
	BitDepth      int           // WAV export

	// Server
	Port          int
	OpusBitrate   int
	FrameBuffer   int // frames queued per listener
	ListenerQueue int

	LogLevel slog.Level
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	def := engine.DefaultConfig()

	return Config{
		SampleRate:      envFloat("MIXER_SAMPLE_RATE", def.SampleRate),
		BlockSize:       envInt("MIXER_BLOCK_SIZE", def.BlockSize),
		Lookahead:       envFloat("MIXER_LOOKAHEAD", def.Lookahead),
		TickInterval:    time.Duration(envInt("MIXER_TICK_MS", int(def.TickInterval/time.Millisecond))) * time.Millisecond,
		TransitionSteps: envInt("MIXER_TRANSITION_STEPS", def.TransitionSteps),
		ReverbSeconds:   envFloat("MIXER_REVERB_SECONDS", def.ImpulseSeconds),

		MediaRoot: envStr("MIXER_MEDIA_ROOT", "."),

		FrameDuration: time.Duration(envInt("MIXER_FRAME_MS", 20)) * time.Millisecond,
		BitDepth:      envInt("MIXER_BIT_DEPTH", 16),

		Port:          envInt("MIXER_PORT", 8080),
		OpusBitrate:   envInt("MIXER_OPUS_BITRATE", 128000),
		FrameBuffer:   envInt("MIXER_FRAME_BUFFER", 8),
		ListenerQueue: envInt("MIXER_LISTENER_QUEUE", 150),

		LogLevel: envLevel("MIXER_LOG_LEVEL", slog.LevelInfo),
	}
}

// Engine returns the engine part of c.
func (c Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.SampleRate = c.SampleRate
	cfg.BlockSize = c.BlockSize
	cfg.Lookahead = c.Lookahead
	cfg.TickInterval = c.TickInterval
	cfg.TransitionSteps = c.TransitionSteps
	cfg.ImpulseSeconds = c.ReverbSeconds

	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}

	return l
}
