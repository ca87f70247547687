package textsink

import (
	"bytes"
	"errors"
	"testing"
)

func TestCollector_JoinsWithSingleSpaces(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	for _, s := range []string{"Hello", "world", "again"} {
		if err := c.Handle(s); err != nil {
			t.Fatalf("Handle(%q): %v", s, err)
		}
	}
	got, ok := c.Finish()
	if !ok || got != "Hello world again" {
		t.Errorf("Finish = (%q, %v), want (\"Hello world again\", true)", got, ok)
	}
}

func TestCollector_EmptyFinishReturnsNothing(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	if got, ok := c.Finish(); ok {
		t.Errorf("Finish = (%q, true), want none", got)
	}
}

func TestCollector_SingleItem(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	_ = c.Handle("Single")
	got, ok := c.Finish()
	if !ok || got != "Single" {
		t.Errorf("Finish = (%q, %v), want (\"Single\", true)", got, ok)
	}
}

func TestHandleTextEvents_SkipsKeyCombos(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	events := []Event{
		Text("hello"),
		KeyCombo("ctrl+BackSpace"),
		Text("world"),
	}
	if err := c.HandleEvents(events); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}
	got, _ := c.Finish()
	if got != "hello world" {
		t.Errorf("Finish = %q, want key combo skipped", got)
	}
}

// failAfter fails Handle after n successful calls, for testing error
// propagation through HandleTextEvents.
type failAfter struct {
	Collector
	remaining int
}

func (f *failAfter) Handle(text string) error {
	if f.remaining <= 0 {
		return errors.New("sink full")
	}
	f.remaining--
	return f.Collector.Handle(text)
}

func (f *failAfter) HandleEvents(events []Event) error {
	return HandleTextEvents(f, events)
}

func TestHandleTextEvents_StopsOnError(t *testing.T) {
	t.Parallel()

	f := &failAfter{remaining: 1}
	err := f.HandleEvents([]Event{Text("one"), Text("two"), Text("three")})
	if err == nil {
		t.Fatal("HandleEvents swallowed the delivery error")
	}
	got, _ := f.Finish()
	if got != "one" {
		t.Errorf("delivered %q before the error, want \"one\"", got)
	}
}

func TestStdout_OneLinePerMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	_ = s.Handle("first")
	_ = s.Handle("second")

	if buf.String() != "first\nsecond\n" {
		t.Errorf("output = %q, want one line per message", buf.String())
	}
	if _, ok := s.Finish(); ok {
		t.Error("stdout sink accumulated a result")
	}
}

func TestEventConstructors(t *testing.T) {
	t.Parallel()

	if e := Text("x"); e.Kind != EventText || e.Text != "x" {
		t.Errorf("Text constructor = %+v", e)
	}
	if e := KeyCombo("ctrl+z"); e.Kind != EventKeyCombo || e.Combo != "ctrl+z" {
		t.Errorf("KeyCombo constructor = %+v", e)
	}
}
