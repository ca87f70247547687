// Package textsink defines the Sink interface for transcription output
// backends and the small event model shared with the pipeline.
//
// A sink is the last hop of the dictation pipeline: it receives cleaned
// transcription text (or an ordered event sequence mixing literal text with
// named key combos) and delivers it somewhere useful — the focused window,
// stdout, or an in-memory collector. Delivery failures are never fatal to the
// pipeline; the failed message is dropped and reported.
//
// This package lives under pkg/ because external code is expected to
// implement [Sink] (custom output integrations).
package textsink

import "strings"

// EventKind discriminates the two event payloads.
type EventKind int

const (
	// EventText is a literal text event.
	EventText EventKind = iota

	// EventKeyCombo is a named keyboard combination (e.g. "ctrl+BackSpace").
	EventKeyCombo
)

// Event is one element of an ordered sink event sequence: either literal
// text to deliver or a key combo to press.
type Event struct {
	Kind EventKind

	// Text holds the literal text when Kind is EventText.
	Text string

	// Combo holds the combo name when Kind is EventKeyCombo. The naming
	// convention is modifier+Key with X11 keysym capitalisation
	// ("ctrl+BackSpace", "ctrl+shift+z").
	Combo string
}

// Text returns a literal text event.
func Text(s string) Event { return Event{Kind: EventText, Text: s} }

// KeyCombo returns a named key-combo event.
func KeyCombo(name string) Event { return Event{Kind: EventKeyCombo, Combo: name} }

// Sink delivers transcription output. Implementations are driven from a
// single pipeline goroutine and need not be safe for concurrent use.
type Sink interface {
	// Handle delivers one piece of transcribed text.
	Handle(text string) error

	// HandleEvents delivers an ordered event sequence. Implementations that
	// cannot press keys should process the text events and skip key combos;
	// [HandleTextEvents] implements exactly that.
	HandleEvents(events []Event) error

	// Finish is called once on pipeline shutdown. Sinks that accumulate
	// (collector mode) return the joined text; others return "" and false.
	Finish() (string, bool)

	// Name identifies the sink in logs.
	Name() string
}

// HandleTextEvents is the default HandleEvents behaviour: call sink.Handle
// for each text event and ignore key combos. Sinks without key support embed
// this in their HandleEvents method.
func HandleTextEvents(s Sink, events []Event) error {
	for _, ev := range events {
		if ev.Kind != EventText {
			continue
		}
		if err := s.Handle(ev.Text); err != nil {
			return err
		}
	}
	return nil
}

// Collector accumulates every handled text and returns the space-joined
// result from Finish. Used for one-shot dictation and in tests.
type Collector struct {
	collected []string
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector { return &Collector{} }

// Handle appends the text.
func (c *Collector) Handle(text string) error {
	c.collected = append(c.collected, text)
	return nil
}

// HandleEvents collects the text events and ignores key combos.
func (c *Collector) HandleEvents(events []Event) error {
	return HandleTextEvents(c, events)
}

// Finish returns everything collected joined with single spaces, or
// ("", false) when nothing was collected.
func (c *Collector) Finish() (string, bool) {
	if len(c.collected) == 0 {
		return "", false
	}
	return strings.Join(c.collected, " "), true
}

// Name returns "collector".
func (c *Collector) Name() string { return "collector" }

// Compile-time assertion that Collector satisfies Sink.
var _ Sink = (*Collector)(nil)
