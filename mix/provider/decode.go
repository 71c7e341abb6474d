package provider

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/cwbudde/algo-mixer/mix/graph"
)

// Decoder turns an encoded stream into a buffer.
type Decoder func(r io.Reader) (*graph.Buffer, error)

// Decoders maps lower-case file extensions, dot included, to decoders.
type Decoders map[string]Decoder

// DefaultDecoders returns the wav, mp3 and ogg decoders.
func DefaultDecoders() Decoders {
	return Decoders{
		".wav": DecodeWAV,
		".mp3": DecodeMP3,
		".ogg": DecodeOgg,
		".oga": DecodeOgg,
	}
}

// For returns the decoder for the extension of name.
func (d Decoders) For(name string) (Decoder, bool) {
	dec, ok := d[strings.ToLower(filepath.Ext(name))]
	return dec, ok
}

// Extensions returns the registered extensions, sorted.
func (d Decoders) Extensions() []string {
	exts := make([]string, 0, len(d))
	for ext := range d {
		exts = append(exts, ext)
	}

	slices.Sort(exts)

	return exts
}

// DecodeWAV decodes integer PCM WAV data.
func DecodeWAV(r io.Reader) (*graph.Buffer, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("wav: read: %w", err)
		}

		rs = bytes.NewReader(data)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", ErrUnsupportedFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: decode: %w", err)
	}

	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: wav without channel count", ErrUnsupportedFormat)
	}

	bits := int(dec.BitDepth)
	if bits == 0 {
		bits = pcm.SourceBitDepth
	}

	samples := make([]float32, len(pcm.Data))

	switch {
	case bits == 8:
		// 8-bit WAV is unsigned.
		for i, v := range pcm.Data {
			samples[i] = float32(v-128) / 128
		}
	case bits > 8 && bits <= 32:
		scale := float32(int64(1) << (bits - 1))
		for i, v := range pcm.Data {
			samples[i] = float32(v) / scale
		}
	default:
		return nil, fmt.Errorf("%w: wav bit depth %d", ErrUnsupportedFormat, bits)
	}

	return interleaved(float64(pcm.Format.SampleRate), pcm.Format.NumChannels, samples)
}

// DecodeMP3 decodes an MP3 stream. The decoder always yields 16-bit
// stereo.
func DecodeMP3(r io.Reader) (*graph.Buffer, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: decode: %w", err)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}

	return interleaved(float64(dec.SampleRate()), 2, samples)
}

// DecodeOgg decodes an Ogg Vorbis stream.
func DecodeOgg(r io.Reader) (*graph.Buffer, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ogg: %w", err)
	}

	return interleaved(float64(format.SampleRate), format.Channels, samples)
}

// interleaved splits frames into at most two channels. Extra channels are
// dropped; mono stays mono.
func interleaved(sampleRate float64, channels int, samples []float32) (*graph.Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}

	frames := len(samples) / channels
	out := make([][]float32, min(channels, 2))

	for ch := range out {
		data := make([]float32, frames)
		for i := range data {
			data[i] = samples[i*channels+ch]
		}

		out[ch] = data
	}

	return graph.NewBuffer(sampleRate, out...)
}
