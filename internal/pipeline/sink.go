package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sottovoce/sotto/internal/observe"
	"github.com/sottovoce/sotto/pkg/textsink"
)

// sinkResult is the value routed to the caller of Stop: the sink's
// accumulated text, if any.
type sinkResult struct {
	text string
	ok   bool
}

// sinkStage delivers transcriptions to the configured [textsink.Sink],
// stamps output_done, and records the complete timing in the latency
// tracker. Delivery failures are reported and never fatal.
type sinkStage struct {
	sink     textsink.Sink
	clock    Clock
	reporter ErrorReporter
	metrics  *observe.Metrics
	tracker  *LatencyTracker

	// verbosity: 0 quiet, 1 one-line results, 2 per-chunk latency breakdown.
	verbosity int

	// out receives result rendering; defaults to os.Stderr so transcribed
	// text on stdout (pipe mode) stays clean.
	out io.Writer

	resultCh chan<- sinkResult
}

func newSinkStage(sink textsink.Sink, clock Clock, reporter ErrorReporter, metrics *observe.Metrics, verbosity int, resultCh chan<- sinkResult) *sinkStage {
	return &sinkStage{
		sink:      sink,
		clock:     clock,
		reporter:  reporter,
		metrics:   metrics,
		tracker:   NewLatencyTracker(0),
		verbosity: verbosity,
		out:       os.Stderr,
		resultCh:  resultCh,
	}
}

func (s *sinkStage) run(in <-chan TranscribedText) {
	for msg := range in {
		s.process(msg)
	}
	s.shutdown()
}

func (s *sinkStage) process(msg TranscribedText) {
	var err error
	if len(msg.Events) > 0 {
		err = s.sink.HandleEvents(msg.Events)
	} else {
		err = s.sink.Handle(msg.Text)
	}
	if err != nil {
		s.metrics.RecordSinkFailure()
		s.reporter.Report(s.sink.Name(), SeverityRecoverable,
			fmt.Sprintf("delivery failed, dropping %q: %v", msg.Text, err))
		return
	}

	timing := TranscriptionTiming{
		CaptureStart:      msg.Timing.CaptureStart,
		VadStart:          msg.Timing.VadStart,
		ChunkCreated:      msg.Timing.ChunkCreated,
		TranscriptionDone: msg.TranscriptionDone,
		OutputDone:        s.clock.Now(),
		AudioDuration:     msg.AudioDuration,
	}
	s.tracker.Record(timing)
	s.metrics.RecordEndToEnd(timing.EndToEnd())
	s.metrics.RecordStageLatency("capture_to_vad", timing.VadStart.Sub(timing.CaptureStart))
	s.metrics.RecordStageLatency("vad_to_chunk", timing.ChunkCreated.Sub(timing.VadStart))
	s.metrics.RecordStageLatency("chunk_to_transcribe", timing.TranscriptionDone.Sub(timing.ChunkCreated))
	s.metrics.RecordStageLatency("transcribe_to_output", timing.OutputDone.Sub(timing.TranscriptionDone))

	switch {
	case s.verbosity >= 2:
		fmt.Fprintf(s.out, "%q (%s, conf %.2f) audio %s  vad %s  chunk %s  transcribe %s  output %s\n",
			msg.Text, msg.Language, msg.Confidence,
			timing.AudioDuration.Round(time.Millisecond),
			timing.VadStart.Sub(timing.CaptureStart).Round(time.Millisecond),
			timing.ChunkCreated.Sub(timing.VadStart).Round(time.Millisecond),
			timing.TranscriptionDone.Sub(timing.ChunkCreated).Round(time.Millisecond),
			timing.OutputDone.Sub(timing.TranscriptionDone).Round(time.Millisecond))
	case s.verbosity == 1:
		fmt.Fprintf(s.out, "%q (waited %s)\n", msg.Text, timing.EndToEnd().Round(time.Millisecond))
	}
}

func (s *sinkStage) shutdown() {
	if s.verbosity >= 1 && s.tracker.Count() > 0 {
		fmt.Fprintln(s.out, s.tracker.Summary())
	}
	text, ok := s.sink.Finish()
	s.resultCh <- sinkResult{text: text, ok: ok}
}
