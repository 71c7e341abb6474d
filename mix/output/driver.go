package output

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFrameDuration is the block length of a Driver, one Opus frame.
const DefaultFrameDuration = 20 * time.Millisecond

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDriverClock sets the clock that paces rendering.
func WithDriverClock(c clockwork.Clock) DriverOption {
	return func(d *Driver) {
		if c != nil {
			d.clk = c
		}
	}
}

// WithFrameDuration sets the length of each rendered frame.
func WithFrameDuration(dur time.Duration) DriverOption {
	return func(d *Driver) {
		if dur > 0 {
			d.interval = dur
		}
	}
}

// WithFrameBuffer sets how many frames may wait for a consumer.
func WithFrameBuffer(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.buffered = n
		}
	}
}

// WithDriverLogger sets the logger.
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// Driver renders frames at real-time pace. The engine keeps running when
// nobody reads: frames the consumer is too slow for are dropped.
type Driver struct {
	r          Renderer
	sampleRate float64
	clk        clockwork.Clock
	interval   time.Duration
	buffered   int
	log        *slog.Logger

	frames  chan []int16
	meter   Meter
	dropped atomic.Uint64
}

// NewDriver returns a driver pulling from r.
func NewDriver(r Renderer, sampleRate float64, opts ...DriverOption) *Driver {
	d := &Driver{
		r:          r,
		sampleRate: sampleRate,
		clk:        clockwork.NewRealClock(),
		interval:   DefaultFrameDuration,
		buffered:   100,
		log:        slog.Default(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	d.frames = make(chan []int16, d.buffered)

	return d
}

// FrameSize returns the frames per channel in each frame.
func (d *Driver) FrameSize() int {
	return int(math.Round(d.sampleRate * d.interval.Seconds()))
}

// FrameDuration returns the length of each frame.
func (d *Driver) FrameDuration() time.Duration { return d.interval }

// Frames delivers interleaved stereo int16 frames. It is closed when Run
// returns.
func (d *Driver) Frames() <-chan []int16 { return d.frames }

// Peaks returns the linear peak levels of the last frame.
func (d *Driver) Peaks() (float64, float64) { return d.meter.Peaks() }

// Dropped returns the number of frames no consumer took in time.
func (d *Driver) Dropped() uint64 { return d.dropped.Load() }

// Run renders one frame per tick until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.frames)

	n := d.FrameSize()
	left := make([]float64, n)
	right := make([]float64, n)

	ticker := d.clk.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Debug("output driver started", "frameSize", n, "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}

		d.r.Render(left, right)
		d.meter.Update(left, right)

		select {
		case d.frames <- Interleave16(nil, left, right):
		default:
			d.dropped.Add(1)
		}
	}
}
