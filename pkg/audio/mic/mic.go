// Package mic implements [audio.Source] over a live microphone using the
// miniaudio bindings (malgo). The capture device is opened at 16 kHz mono
// s16 — miniaudio performs the hardware-rate conversion — so frames can be
// handed to the pipeline without further processing.
package mic

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/sottovoce/sotto/pkg/audio"
)

const captureSampleRate = 16000

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithDevice selects the capture device whose name contains the given
// substring (case-insensitive). The default device is used when empty or
// when no device matches at Start (a warning-free fallback: miniaudio's
// default is almost always right).
func WithDevice(name string) Option {
	return func(s *Source) { s.deviceName = name }
}

// Source is a malgo-backed microphone [audio.Source]. Create with [New];
// Start opens the device, ReadSamples drains what the device callback has
// delivered since the previous call, blocking until at least one sample is
// available.
type Source struct {
	deviceName string

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	cond    *sync.Cond
	pending []int16
	stopped bool
}

// New returns an unopened microphone source.
func New(opts ...Option) *Source {
	s := &Source{}
	s.cond = sync.NewCond(&s.mu)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start initialises miniaudio and opens the capture device. Failure here is
// fatal to pipeline startup (no microphone, no dictation).
func (s *Source) Start() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("mic: init audio context: %w", err)
	}
	s.ctx = ctx

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = captureSampleRate
	cfg.Alsa.NoMMap = 1

	if s.deviceName != "" {
		if id, ok := s.findDevice(s.deviceName); ok {
			cfg.Capture.DeviceID = id.Pointer()
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			samples := audio.BytesToInt16s(input)
			s.mu.Lock()
			s.pending = append(s.pending, samples...)
			s.mu.Unlock()
			s.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		s.teardownContext()
		return fmt.Errorf("mic: open capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		s.device = nil
		s.teardownContext()
		return fmt.Errorf("mic: start capture: %w", err)
	}
	return nil
}

// Stop closes the device and releases miniaudio.
func (s *Source) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cond.Broadcast()

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	s.teardownContext()
	return nil
}

// ReadSamples returns the samples captured since the previous call. It
// blocks until the device delivers something; after Stop it returns whatever
// remains and then empty slices.
func (s *Source) ReadSamples() ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if len(s.pending) == 0 {
		// Stopped and drained.
		return nil, nil
	}
	out := s.pending
	s.pending = nil
	return out, nil
}

// findDevice looks up a capture device by name substring.
func (s *Source) findDevice(name string) (malgo.DeviceID, bool) {
	infos, err := s.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, false
	}
	needle := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info.ID, true
		}
	}
	return malgo.DeviceID{}, false
}

func (s *Source) teardownContext() {
	if s.ctx == nil {
		return
	}
	_ = s.ctx.Uninit()
	s.ctx.Free()
	s.ctx = nil
}

// ListDevices returns the names of the available capture devices, for CLI
// device listing.
func ListDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("mic: init audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.Join(errors.New("mic: enumerate capture devices"), err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)
