// Package mock provides a scripted [textsink.Sink] for tests.
package mock

import (
	"errors"
	"sync"

	"github.com/sottovoce/sotto/pkg/textsink"
)

// Sink records every call and can be scripted to fail. Safe for concurrent
// inspection while the pipeline is running.
type Sink struct {
	mu       sync.Mutex
	handled  []string
	events   [][]textsink.Event
	failNext bool
	failAll  bool
	delay    func()
}

// New returns an empty mock sink.
func New() *Sink { return &Sink{} }

// FailNext makes the next Handle/HandleEvents call return an error.
func (s *Sink) FailNext() *Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
	return s
}

// FailAll makes every delivery fail.
func (s *Sink) FailAll() *Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = true
	return s
}

// WithDelay installs fn to be invoked (outside the lock) before each
// delivery. Used to stall the sink in backpressure tests.
func (s *Sink) WithDelay(fn func()) *Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = fn
	return s
}

func (s *Sink) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return true
	}
	if s.failNext {
		s.failNext = false
		return true
	}
	return false
}

// Handle records the text, honouring any scripted failure or delay.
func (s *Sink) Handle(text string) error {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay != nil {
		delay()
	}
	if s.shouldFail() {
		return errors.New("mock sink failure")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled = append(s.handled, text)
	return nil
}

// HandleEvents records the event slice, honouring scripted failures.
func (s *Sink) HandleEvents(events []textsink.Event) error {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay != nil {
		delay()
	}
	if s.shouldFail() {
		return errors.New("mock sink failure")
	}
	cp := make([]textsink.Event, len(events))
	copy(cp, events)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cp)
	return nil
}

// Finish returns the handled texts joined with spaces.
func (s *Sink) Finish() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handled) == 0 {
		return "", false
	}
	joined := s.handled[0]
	for _, t := range s.handled[1:] {
		joined += " " + t
	}
	return joined, true
}

// Name returns "mock".
func (s *Sink) Name() string { return "mock" }

// Handled returns a copy of every text delivered via Handle.
func (s *Sink) Handled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.handled))
	copy(out, s.handled)
	return out
}

// Events returns a copy of every event batch delivered via HandleEvents.
func (s *Sink) Events() [][]textsink.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]textsink.Event, len(s.events))
	copy(out, s.events)
	return out
}

var _ textsink.Sink = (*Sink)(nil)
