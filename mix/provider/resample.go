package provider

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-mixer/dsp/resample"
	"github.com/cwbudde/algo-mixer/mix/graph"
)

// Resample converts buf to rate, one goroutine per channel. A buffer
// already at rate is returned unchanged.
func Resample(buf *graph.Buffer, rate float64) (*graph.Buffer, error) {
	if buf == nil || rate <= 0 || buf.SampleRate == rate {
		return buf, nil
	}

	out := make([][]float32, len(buf.Channels))

	var eg errgroup.Group

	for ch, src := range buf.Channels {
		eg.Go(func() error {
			y, err := resample.Convert(src, buf.SampleRate, rate)
			if err != nil {
				return err
			}

			out[ch] = y

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("provider: resample %v -> %v: %w", buf.SampleRate, rate, err)
	}

	return graph.NewBuffer(rate, out...)
}
