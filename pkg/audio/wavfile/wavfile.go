// Package wavfile implements [audio.Source] over a RIFF/WAVE file. The file
// is decoded fully at Start, converted to 16 kHz mono, and then served in
// fixed-size frames; once exhausted, ReadSamples returns an empty slice —
// the pipeline's EOS signal. This is the source used for transcribing
// recordings and for reproducible end-to-end runs.
package wavfile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/sottovoce/sotto/pkg/audio"
)

// defaultFrameDuration is the audio duration served per read. Larger than
// the live capture cadence on purpose: file transcription should run faster
// than real time.
const defaultFrameDuration = 100 * time.Millisecond

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithFrameDuration sets the audio duration served per ReadSamples call.
func WithFrameDuration(d time.Duration) Option {
	return func(s *Source) { s.frameDuration = d }
}

// Source is a WAV-file-backed [audio.Source].
type Source struct {
	path          string
	frameDuration time.Duration

	samples []int16
	offset  int
	started bool
}

// New returns a source reading from the WAV file at path. The file is not
// touched until Start.
func New(path string, opts ...Option) *Source {
	s := &Source{path: path, frameDuration: defaultFrameDuration}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start decodes the file into 16 kHz mono samples. Unsupported encodings
// and unreadable files fail here, before the pipeline spins up.
func (s *Source) Start() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("wavfile: open %q: %w", s.path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("wavfile: decode %q: %w", s.path, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return fmt.Errorf("wavfile: %q contains no audio", s.path)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.NumChannels > 2 {
		return fmt.Errorf("wavfile: %q: unsupported channel layout", s.path)
	}

	samples, err := toInt16(buf.Data, int(dec.BitDepth))
	if err != nil {
		return fmt.Errorf("wavfile: %q: %w", s.path, err)
	}

	s.samples = audio.ToMono16k(samples, buf.Format.SampleRate, buf.Format.NumChannels)
	s.offset = 0
	s.started = true
	return nil
}

// Stop releases the decoded audio.
func (s *Source) Stop() error {
	s.samples = nil
	s.started = false
	return nil
}

// ReadSamples serves the next frame, or an empty slice at EOF.
func (s *Source) ReadSamples() ([]int16, error) {
	if !s.started {
		return nil, errors.New("wavfile: source not started")
	}
	if s.offset >= len(s.samples) {
		return nil, nil
	}
	frame := int(s.frameDuration.Seconds() * 16000)
	if frame <= 0 {
		frame = 1
	}
	end := s.offset + frame
	if end > len(s.samples) {
		end = len(s.samples)
	}
	out := s.samples[s.offset:end]
	s.offset = end
	return out, nil
}

// Duration returns the decoded audio length. Valid after Start.
func (s *Source) Duration() time.Duration {
	return time.Duration(len(s.samples)) * time.Second / 16000
}

// toInt16 narrows decoded PCM ints to int16, shifting down higher bit
// depths and shifting up 8-bit audio.
func toInt16(data []int, bitDepth int) ([]int16, error) {
	out := make([]int16, len(data))
	switch bitDepth {
	case 16:
		for i, v := range data {
			out[i] = int16(v)
		}
	case 8:
		for i, v := range data {
			out[i] = int16((v - 128) << 8)
		}
	case 24:
		for i, v := range data {
			out[i] = int16(v >> 8)
		}
	case 32:
		for i, v := range data {
			out[i] = int16(v >> 16)
		}
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	return out, nil
}

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)
