package pipeline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sottovoce/sotto/pkg/textsink"
	sinkmock "github.com/sottovoce/sotto/pkg/textsink/mock"
)

func newTestSinkStage(sink textsink.Sink, verbosity int) (*sinkStage, chan sinkResult, *CollectingReporter, *bytes.Buffer) {
	reporter := &CollectingReporter{}
	resultCh := make(chan sinkResult, 1)
	s := newSinkStage(sink, NewMockClock(), reporter, nil, verbosity, resultCh)
	var buf bytes.Buffer
	s.out = &buf
	return s, resultCh, reporter, &buf
}

func textMsg(text string, id uint64) TranscribedText {
	base := time.Unix(0, 0)
	return TranscribedText{
		Text:       text,
		Language:   "en",
		Confidence: 0.9,
		Timing: ChunkTiming{
			CaptureStart: base,
			VadStart:     base.Add(time.Millisecond),
			ChunkCreated: base.Add(2 * time.Millisecond),
		},
		TranscriptionDone: base.Add(10 * time.Millisecond),
		AudioDuration:     time.Second,
		ChunkID:           id,
	}
}

func TestSink_DeliversAndRoutesResult(t *testing.T) {
	t.Parallel()

	s, resultCh, _, _ := newTestSinkStage(textsink.NewCollector(), 0)
	in := make(chan TranscribedText, 4)
	in <- textMsg("First", 0)
	in <- textMsg("Second", 1)
	close(in)

	s.run(in)

	res := <-resultCh
	if !res.ok || res.text != "First Second" {
		t.Errorf("result = (%q, %v), want (\"First Second\", true)", res.text, res.ok)
	}
	if s.tracker.Count() != 2 {
		t.Errorf("tracker recorded %d timings, want 2", s.tracker.Count())
	}
}

func TestSink_EmptyRunReturnsNoResult(t *testing.T) {
	t.Parallel()

	s, resultCh, _, _ := newTestSinkStage(textsink.NewCollector(), 0)
	in := make(chan TranscribedText)
	close(in)

	s.run(in)

	res := <-resultCh
	if res.ok {
		t.Errorf("result = (%q, true), want none", res.text)
	}
}

func TestSink_DeliveryFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	mock := sinkmock.New().FailNext()
	s, resultCh, reporter, _ := newTestSinkStage(mock, 0)
	in := make(chan TranscribedText, 4)
	in <- textMsg("dropped", 0)
	in <- textMsg("kept", 1)
	close(in)

	s.run(in)

	res := <-resultCh
	if !res.ok || res.text != "kept" {
		t.Errorf("result = (%q, %v), want (\"kept\", true)", res.text, res.ok)
	}
	reports := reporter.Reports()
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].Severity != SeverityRecoverable {
		t.Errorf("severity = %v, want recoverable", reports[0].Severity)
	}
	// The failed message is not recorded in the latency tracker.
	if s.tracker.Count() != 1 {
		t.Errorf("tracker recorded %d timings, want 1", s.tracker.Count())
	}
}

func TestSink_EventsDispatchedWhenPresent(t *testing.T) {
	t.Parallel()

	mock := sinkmock.New()
	s, resultCh, _, _ := newTestSinkStage(mock, 0)
	in := make(chan TranscribedText, 4)

	withEvents := textMsg("", 0)
	withEvents.Events = []textsink.Event{
		textsink.Text("hello"),
		textsink.KeyCombo("ctrl+BackSpace"),
	}
	in <- withEvents
	in <- textMsg("plain", 1)
	close(in)

	s.run(in)
	<-resultCh

	if got := mock.Events(); len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("HandleEvents batches = %v, want one batch of two events", got)
	}
	if got := mock.Handled(); len(got) != 1 || got[0] != "plain" {
		t.Errorf("Handle calls = %v, want [plain]", got)
	}
}

func TestSink_VerbosityRendering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbosity  int
		wantResult bool
		wantDetail bool
	}{
		{0, false, false},
		{1, true, false},
		{2, true, true},
	}
	for _, tt := range tests {
		s, resultCh, _, buf := newTestSinkStage(textsink.NewCollector(), tt.verbosity)
		in := make(chan TranscribedText, 1)
		in <- textMsg("words", 0)
		close(in)
		s.run(in)
		<-resultCh

		out := buf.String()
		if got := strings.Contains(out, `"words"`); got != tt.wantResult {
			t.Errorf("verbosity %d: result line present = %v, want %v (output %q)", tt.verbosity, got, tt.wantResult, out)
		}
		if got := strings.Contains(out, "conf"); got != tt.wantDetail {
			t.Errorf("verbosity %d: detail present = %v, want %v", tt.verbosity, got, tt.wantDetail)
		}
	}
}

func TestSink_SummaryPrintedAtVerbosityOne(t *testing.T) {
	t.Parallel()

	s, resultCh, _, buf := newTestSinkStage(textsink.NewCollector(), 1)
	in := make(chan TranscribedText, 2)
	in <- textMsg("a", 0)
	in <- textMsg("b", 1)
	close(in)
	s.run(in)
	<-resultCh

	if !strings.Contains(buf.String(), "latency over 2 transcriptions") {
		t.Errorf("summary missing from output: %q", buf.String())
	}
}
