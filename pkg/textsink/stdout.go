package textsink

import (
	"fmt"
	"io"
	"os"
)

// Stdout is the pipe-mode sink: one line per transcription on an io.Writer
// (os.Stdout by default). Useful for composing sotto with shell pipelines.
type Stdout struct {
	w io.Writer
}

// NewStdout returns a sink writing to os.Stdout.
func NewStdout() *Stdout { return &Stdout{w: os.Stdout} }

// NewWriterSink returns a line-per-message sink writing to w.
func NewWriterSink(w io.Writer) *Stdout { return &Stdout{w: w} }

// Handle prints the text followed by a newline.
func (s *Stdout) Handle(text string) error {
	_, err := fmt.Fprintln(s.w, text)
	return err
}

// HandleEvents prints text events and ignores key combos.
func (s *Stdout) HandleEvents(events []Event) error {
	return HandleTextEvents(s, events)
}

// Finish returns nothing; pipe mode has no accumulated result.
func (s *Stdout) Finish() (string, bool) { return "", false }

// Name returns "stdout".
func (s *Stdout) Name() string { return "stdout" }

var _ Sink = (*Stdout)(nil)
