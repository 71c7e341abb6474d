package output

import (
	"context"
	"errors"
	"time"
)

// Sink consumes rendered blocks.
type Sink interface {
	Write(left, right []float64) error
}

// Tee writes every block to each sink in order and stops at the first
// error.
func Tee(sinks ...Sink) Sink { return tee(sinks) }

type tee []Sink

func (t tee) Write(left, right []float64) error {
	for _, s := range t {
		if err := s.Write(left, right); err != nil {
			return err
		}
	}

	return nil
}

// OfflineConfig describes an offline render.
type OfflineConfig struct {
	SampleRate float64
	BlockSize  int
	// TickInterval is the audio time between scheduler ticks.
	TickInterval time.Duration
	// Duration stops the render after this many seconds; 0 renders until
	// Done reports true.
	Duration float64
	// Done is polled after every tick.
	Done func() bool
	// Tail is rendered after Done, for reverb and echo decay.
	Tail float64
}

var errNoStop = errors.New("output: offline render needs a duration or a done func")

// Offline renders r into sink faster than real time. tick runs every
// TickInterval of audio time, before the block that reaches it. It returns
// the number of frames written.
func Offline(ctx context.Context, r Renderer, tick func(), sink Sink, cfg OfflineConfig) (int64, error) {
	if cfg.Duration <= 0 && cfg.Done == nil {
		return 0, errNoStop
	}

	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 128
	}

	tickEvery := int64(cfg.TickInterval.Seconds() * cfg.SampleRate)
	if tickEvery <= 0 {
		tickEvery = int64(cfg.BlockSize)
	}

	limit := int64(-1)
	if cfg.Duration > 0 {
		limit = int64(cfg.Duration * cfg.SampleRate)
	}

	left := make([]float64, cfg.BlockSize)
	right := make([]float64, cfg.BlockSize)

	var (
		written  int64
		nextTick int64
		tailEnd  int64 = -1
	)

	for limit < 0 || written < limit {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		if written >= nextTick {
			if tick != nil {
				tick()
			}

			nextTick += tickEvery

			if tailEnd < 0 && cfg.Done != nil && cfg.Done() {
				tailEnd = written + int64(cfg.Tail*cfg.SampleRate)
			}
		}

		if tailEnd >= 0 && written >= tailEnd {
			break
		}

		n := int64(cfg.BlockSize)
		if d := nextTick - written; d < n {
			n = d
		}

		if limit >= 0 && limit-written < n {
			n = limit - written
		}

		if tailEnd >= 0 && tailEnd-written < n {
			n = tailEnd - written
		}

		r.Render(left[:n], right[:n])

		if err := sink.Write(left[:n], right[:n]); err != nil {
			return written, err
		}

		written += n
	}

	return written, nil
}
