package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-mixer/mix/graph"
)

// FilesOption configures a Files provider.
type FilesOption func(*Files)

// WithDecoders replaces the decoder table.
func WithDecoders(d Decoders) FilesOption {
	return func(f *Files) {
		if len(d) > 0 {
			f.decoders = d
		}
	}
}

// WithFilesLogger sets the logger.
func WithFilesLogger(l *slog.Logger) FilesOption {
	return func(f *Files) {
		if l != nil {
			f.log = l
		}
	}
}

// WithTargetRate converts decoded audio to rate at load time, so playback
// does not interpolate.
func WithTargetRate(rate float64) FilesOption {
	return func(f *Files) {
		if rate > 0 {
			f.rate = rate
		}
	}
}

// Files decodes audio files below a root directory. A source id is a
// slash-separated path relative to the root; an id without extension is
// tried with every registered extension in order.
type Files struct {
	root     string
	decoders Decoders
	rate     float64
	log      *slog.Logger
}

// NewFiles returns a provider reading below root.
func NewFiles(root string, opts ...FilesOption) *Files {
	f := &Files{root: root, decoders: DefaultDecoders(), log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f
}

// LoadBuffer implements Provider.
func (f *Files) LoadBuffer(ctx context.Context, sourceID string) (*graph.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel := filepath.FromSlash(sourceID)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %s escapes the library root", ErrBufferNotFound, sourceID)
	}

	candidates := []string{rel}
	if filepath.Ext(rel) == "" {
		candidates = candidates[:0]
		for _, ext := range f.decoders.Extensions() {
			candidates = append(candidates, rel+ext)
		}
	}

	for _, name := range candidates {
		buf, err := f.decodeFile(filepath.Join(f.root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("provider: %s: %w", sourceID, err)
		}

		f.log.Debug("decoded source",
			"sourceId", sourceID, "sampleRate", buf.SampleRate, "frames", buf.Frames())

		if f.rate > 0 && buf.SampleRate != f.rate {
			if buf, err = Resample(buf, f.rate); err != nil {
				return nil, err
			}
		}

		return buf, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrBufferNotFound, sourceID)
}

func (f *Files) decodeFile(path string) (*graph.Buffer, error) {
	dec, ok := f.decoders.For(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return dec(file)
}
