// Package audio defines the Source interface for audio capture backends and
// the PCM conversion helpers shared by the adapter packages.
//
// A Source produces ordered 16-bit PCM samples at whatever cadence the
// backend delivers them; the pipeline's capture loop polls it on a fixed
// interval. Adapter packages (audio/mic, audio/wavfile, audio/opusstream)
// implement Source over concrete backends and are responsible for delivering
// 16 kHz mono — the pipeline assumes and enforces that rate.
//
// This package lives under pkg/ because external code is expected to
// implement [Source] (custom capture integrations).
package audio

import (
	"errors"
	"sync"
)

// Source is the audio capture capability.
//
// The contract, as exercised by the pipeline's capture loop:
//
//   - Start begins capture. A Start failure is fatal: the pipeline refuses
//     to start.
//   - ReadSamples returns the samples accumulated since the previous read.
//     A non-empty slice is 16 kHz mono signed 16-bit PCM in capture order.
//     An EMPTY slice with a nil error means the source is exhausted (EOS) —
//     this is how file-backed sources end the pipeline. Live sources block
//     or return whatever has arrived, never an empty slice, until stopped.
//   - A ReadSamples error is transient: the loop reports it and keeps polling.
//   - Stop ends capture and releases the device. Errors from Stop are ignored.
//
// A Source is driven from a single goroutine; implementations need not be
// safe for concurrent use.
type Source interface {
	Start() error
	Stop() error
	ReadSamples() ([]int16, error)
}

// FramePhase scripts one phase of a [MockSource]: the same sample slice is
// served Count times before the next phase begins.
type FramePhase struct {
	Samples []int16
	Count   int
}

// MockSource is a scripted [Source] for tests: it serves configured frame
// phases in order and then reports EOS, and can be told to fail Start or
// ReadSamples. Safe for concurrent inspection.
type MockSource struct {
	mu        sync.Mutex
	phases    []FramePhase
	phase     int
	served    int
	started   bool
	stopped   bool
	failStart bool
	failRead  bool
}

// NewMockSource returns a MockSource with no scripted frames: the first read
// reports EOS.
func NewMockSource() *MockSource { return &MockSource{} }

// WithFrameSequence scripts the phases served by ReadSamples.
func (m *MockSource) WithFrameSequence(phases []FramePhase) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = phases
	return m
}

// WithSamples scripts a single endless phase serving the given samples on
// every read.
func (m *MockSource) WithSamples(samples []int16) *MockSource {
	return m.WithFrameSequence([]FramePhase{{Samples: samples, Count: int(^uint(0) >> 1)}})
}

// WithStartFailure makes Start return an error.
func (m *MockSource) WithStartFailure() *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStart = true
	return m
}

// WithReadFailure makes every ReadSamples call return an error.
func (m *MockSource) WithReadFailure() *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = true
	return m
}

// Start marks the source started, or fails if scripted to.
func (m *MockSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStart {
		return errors.New("mock audio source: start failure")
	}
	m.started = true
	return nil
}

// Stop marks the source stopped.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// ReadSamples serves the next scripted frame, an error if read failure is
// scripted, or an empty slice once all phases are exhausted.
func (m *MockSource) ReadSamples() ([]int16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errors.New("mock audio source: read failure")
	}
	for m.phase < len(m.phases) {
		p := m.phases[m.phase]
		if m.served < p.Count {
			m.served++
			out := make([]int16, len(p.Samples))
			copy(out, p.Samples)
			return out, nil
		}
		m.phase++
		m.served = 0
	}
	return nil, nil
}

// Started reports whether Start has been called.
func (m *MockSource) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stopped reports whether Stop has been called.
func (m *MockSource) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Compile-time assertion that MockSource satisfies Source.
var _ Source = (*MockSource)(nil)
