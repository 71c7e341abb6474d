package output

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-mixer/dsp/dither"
)

// WAVWriter encodes stereo blocks as integer PCM WAV.
type WAVWriter struct {
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	scale  float64
	dither [2]*dither.Quantizer
	closer io.Closer
	closed bool
}

// WAVOption configures a WAVWriter.
type WAVOption func(*wavConfig)

type wavConfig struct {
	dither dither.Type
	shape  bool
	seed   *uint64
}

// WithDither adds dither noise of the given type before quantization.
// Noise shaping adds first-order error feedback.
func WithDither(t dither.Type, shape bool) WAVOption {
	return func(c *wavConfig) {
		c.dither = t
		c.shape = shape
	}
}

// WithDitherSeed makes the dither noise reproducible.
func WithDitherSeed(seed uint64) WAVOption {
	return func(c *wavConfig) { c.seed = &seed }
}

// NewWAVWriter writes to w at the given rate and bit depth (16 or 24).
// Without WithDither samples are rounded.
func NewWAVWriter(w io.WriteSeeker, sampleRate, bitDepth int, opts ...WAVOption) (*WAVWriter, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("output: unsupported wav bit depth %d", bitDepth)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("output: wav sample rate must be positive: %d", sampleRate)
	}

	var cfg wavConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	ww := &WAVWriter{
		enc: wav.NewEncoder(w, sampleRate, bitDepth, 2, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		scale: float64(int64(1)<<(bitDepth-1) - 1),
	}

	if cfg.dither != dither.None || cfg.shape {
		for ch := range ww.dither {
			dopts := []dither.Option{dither.WithType(cfg.dither), dither.WithNoiseShaping(cfg.shape)}
			if cfg.seed != nil {
				dopts = append(dopts, dither.WithSeed(*cfg.seed+uint64(ch)))
			}

			q, err := dither.New(bitDepth, dopts...)
			if err != nil {
				return nil, fmt.Errorf("output: %w", err)
			}

			ww.dither[ch] = q
		}
	}

	return ww, nil
}

// CreateWAV creates the file at path and returns a writer that closes it.
func CreateWAV(path string, sampleRate, bitDepth int, opts ...WAVOption) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	w, err := NewWAVWriter(f, sampleRate, bitDepth, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}

	w.closer = f

	return w, nil
}

// Write appends one stereo block.
func (w *WAVWriter) Write(left, right []float64) error {
	if w.closed {
		return errors.New("output: wav writer closed")
	}

	n := 2 * len(left)
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}

	w.buf.Data = w.buf.Data[:n]

	for i := range left {
		w.buf.Data[2*i] = w.quantize(0, left[i])
		w.buf.Data[2*i+1] = w.quantize(1, right[i])
	}

	return w.enc.Write(w.buf)
}

// Close finalizes the header and closes the underlying file, if any.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true
	err := w.enc.Close()

	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}

	return err
}

func (w *WAVWriter) quantize(ch int, v float64) int {
	if q := w.dither[ch]; q != nil {
		return q.Quantize(v)
	}

	if math.IsNaN(v) {
		return 0
	}

	return int(math.Round(max(-1, min(1, v)) * w.scale))
}
