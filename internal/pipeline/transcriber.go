package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sottovoce/sotto/internal/observe"
	"github.com/sottovoce/sotto/pkg/correct"
	"github.com/sottovoce/sotto/pkg/stt"
)

// transcriberStage runs the shared transcriber on each chunk, cleans the
// output, and drops empty or hallucinated results. Transcription failures
// are recoverable: the chunk is dropped and reported.
type transcriberStage struct {
	transcriber stt.Transcriber
	corrector   correct.Corrector
	clock       Clock
	reporter    ErrorReporter
	metrics     *observe.Metrics

	// filters holds the hallucination blacklist, pre-lowercased for exact
	// matching against the cleaned text.
	filters []string

	warnedSlow bool
}

func newTranscriberStage(t stt.Transcriber, clock Clock, reporter ErrorReporter, metrics *observe.Metrics, filters []string, corrector correct.Corrector) *transcriberStage {
	lowered := make([]string, 0, len(filters))
	for _, f := range filters {
		lowered = append(lowered, strings.ToLower(f))
	}
	if corrector == nil {
		corrector = correct.Noop{}
	}
	return &transcriberStage{
		transcriber: t,
		corrector:   corrector,
		clock:       clock,
		reporter:    reporter,
		metrics:     metrics,
		filters:     lowered,
	}
}

func (s *transcriberStage) run(in <-chan AudioChunk, out chan<- TranscribedText) {
	defer close(out)
	for chunk := range in {
		if text, ok := s.process(chunk); ok {
			out <- text
		}
	}
}

func (s *transcriberStage) process(chunk AudioChunk) (TranscribedText, bool) {
	start := time.Now()
	result, err := s.transcriber.Transcribe(chunk.Samples)
	if err != nil {
		s.reporter.Report("transcriber", SeverityRecoverable, "transcription failed: "+err.Error())
		return TranscribedText{}, false
	}

	s.warnIfSlow(time.Since(start), chunk.Duration())

	cleaned := cleanTranscription(result.Text)
	if cleaned == "" {
		return TranscribedText{}, false
	}
	if s.isHallucination(cleaned) {
		s.metrics.RecordHallucination()
		return TranscribedText{}, false
	}

	cleaned = s.corrector.Correct(cleaned)

	s.metrics.RecordTranscription()
	return TranscribedText{
		Text:              cleaned,
		Language:          result.Language,
		Confidence:        result.Confidence,
		Timing:            chunk.Timing,
		TranscriptionDone: s.clock.Now(),
		AudioDuration:     chunk.Duration(),
		ChunkID:           chunk.ID,
	}, true
}

// warnIfSlow raises the slower-than-real-time warning at most once per
// pipeline lifetime. Slow transcription is not cancelled — upstream
// drop-on-full keeps memory bounded — but the user should know why latency
// is climbing.
func (s *transcriberStage) warnIfSlow(elapsed, audio time.Duration) {
	if s.warnedSlow || elapsed <= audio {
		return
	}
	s.warnedSlow = true
	s.reporter.Report("transcriber", SeverityRecoverable, fmt.Sprintf(
		"transcription slower than real-time (%dms for %dms of audio); "+
			"consider a smaller model (e.g. tiny.en), GPU acceleration, or a larger max chunk ceiling",
		elapsed.Milliseconds(), audio.Milliseconds()))
}

// isHallucination reports whether the cleaned text exactly matches a
// blacklist entry, case-insensitively.
func (s *transcriberStage) isHallucination(cleaned string) bool {
	if len(s.filters) == 0 {
		return false
	}
	lower := strings.ToLower(cleaned)
	for _, f := range s.filters {
		if f == lower {
			return true
		}
	}
	return false
}

// cleanTranscription strips Whisper's non-speech annotations in any
// language. The model wraps them in […], (…), or *…* — these never contain
// real speech. Matching is character-level: an opener with no closer is kept
// as-is. Runs of whitespace collapse to one space and the result is trimmed.
func cleanTranscription(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		var closer rune
		switch ch {
		case '[':
			closer = ']'
		case '(':
			closer = ')'
		case '*':
			closer = '*'
		default:
			b.WriteRune(ch)
			continue
		}

		end := -1
		for j := i + 1; j < len(runes); j++ {
			if runes[j] == closer {
				end = j
				break
			}
		}
		if end < 0 {
			// Unmatched opener: keep it literally and go on scanning after it.
			b.WriteRune(ch)
			continue
		}
		i = end // skip the annotation and its delimiters
	}

	// Collapse whitespace runs and trim.
	return strings.Join(strings.Fields(b.String()), " ")
}
