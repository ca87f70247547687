// Package opusstream implements a push-style [audio.Source] fed with Opus
// packets — the format voice-chat platforms and many recorders deliver.
// Packets pushed by the producer are decoded with gopus, downmixed and
// resampled to 16 kHz mono, and buffered until the pipeline's capture loop
// reads them. A single decoder instance carries the codec state across
// consecutive packets, so packets must be pushed in stream order.
package opusstream

import (
	"errors"
	"fmt"
	"sync"

	"layeh.com/gopus"

	"github.com/sottovoce/sotto/pkg/audio"
)

// Stream defaults match the common voice-platform configuration: 48 kHz
// stereo Opus at 20 ms frames.
const (
	defaultSampleRate  = 48000
	defaultChannels    = 2
	defaultFrameSizeMs = 20
)

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithStreamFormat overrides the Opus stream's sample rate and channel
// count. Defaults: 48000 Hz, 2 channels.
func WithStreamFormat(sampleRate, channels int) Option {
	return func(s *Source) {
		s.sampleRate = sampleRate
		s.channels = channels
	}
}

// Source is a push-fed Opus [audio.Source]. The producing side calls
// [Source.Push] for every packet and [Source.CloseInput] at end of stream;
// the pipeline polls ReadSamples as with any other source.
type Source struct {
	sampleRate int
	channels   int

	dec *gopus.Decoder

	mu      sync.Mutex
	cond    *sync.Cond
	pending []int16
	closed  bool
	stopped bool
}

// New returns an unstarted Opus stream source.
func New(opts ...Option) *Source {
	s := &Source{
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start creates the decoder.
func (s *Source) Start() error {
	dec, err := gopus.NewDecoder(s.sampleRate, s.channels)
	if err != nil {
		return fmt.Errorf("opusstream: create decoder: %w", err)
	}
	s.dec = dec
	return nil
}

// Stop ends the source; pending audio is discarded.
func (s *Source) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.pending = nil
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}

// Push decodes one Opus packet and queues its audio. Decode failures are
// returned to the producer (a corrupt packet is the producer's problem, not
// the pipeline's) and the stream remains usable.
func (s *Source) Push(packet []byte) error {
	if s.dec == nil {
		return errors.New("opusstream: source not started")
	}
	frameSize := s.sampleRate * defaultFrameSizeMs / 1000
	pcm, err := s.dec.Decode(packet, frameSize, false)
	if err != nil {
		return fmt.Errorf("opusstream: decode packet: %w", err)
	}

	mono := audio.ToMono16k(pcm, s.sampleRate, s.channels)

	s.mu.Lock()
	if s.stopped || s.closed {
		s.mu.Unlock()
		return errors.New("opusstream: source closed")
	}
	s.pending = append(s.pending, mono...)
	s.mu.Unlock()
	s.cond.Signal()
	return nil
}

// CloseInput marks the end of the packet stream. Once the buffered audio is
// drained, ReadSamples reports EOS and the pipeline winds down.
func (s *Source) CloseInput() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// ReadSamples returns the decoded audio accumulated since the previous
// call, blocking until a packet arrives, the input is closed, or the source
// is stopped.
func (s *Source) ReadSamples() ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && !s.closed && !s.stopped {
		s.cond.Wait()
	}
	if len(s.pending) == 0 {
		return nil, nil
	}
	out := s.pending
	s.pending = nil
	return out, nil
}

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)
