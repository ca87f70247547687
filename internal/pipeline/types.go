// Package pipeline implements the streaming audio → text dataflow at the heart
// of sotto: a linear chain of four worker stages connected by bounded channels,
// fed by a capture loop polling an [audio.Source].
//
//	capture → VAD → chunker → transcriber → sink
//
// Each stage owns its state and runs on its own goroutine; values are moved
// along the chain and never shared. The only cross-stage objects are the
// shutdown flag, the frame sequence counter, and the [ErrorReporter]. Ordering
// is preserved end to end: frames arrive in sequence order, chunks and
// transcriptions in chunk-ID order.
package pipeline

import (
	"time"

	"github.com/sottovoce/sotto/pkg/textsink"
)

// SampleRate is the fixed sample rate of all audio flowing through the
// pipeline: 16 kHz mono signed 16-bit PCM. Source adapters are responsible
// for resampling and downmixing before delivery.
const SampleRate = 16000

// AudioFrame is a small burst of PCM produced by one capture poll.
type AudioFrame struct {
	// Samples is 16 kHz mono PCM. Never empty for frames entering the pipeline.
	Samples []int16

	// CapturedAt is the monotonic timestamp of capture completion.
	CapturedAt time.Time

	// Sequence increases strictly per pipeline. Gaps are permitted (frames may
	// be dropped under backpressure) but order is preserved.
	Sequence uint64
}

// Duration returns the audio duration represented by the frame.
func (f AudioFrame) Duration() time.Duration {
	return samplesDuration(len(f.Samples))
}

// VadFrame is an AudioFrame plus its speech/silence classification.
type VadFrame struct {
	AudioFrame

	// IsSpeech reports the classification of this frame.
	IsSpeech bool

	// ActiveThreshold is the normalized RMS threshold that was in effect when
	// the frame was classified. Carried for diagnostics and level display.
	ActiveThreshold float64

	// ClassifiedAt is the monotonic timestamp of classification; it seeds the
	// vad_start checkpoint of any chunk this frame starts.
	ClassifiedAt time.Time
}

// ChunkTiming holds the checkpoints stamped on a chunk's way through the
// pipeline, starting from the first speech frame that seeded it.
type ChunkTiming struct {
	CaptureStart time.Time
	VadStart     time.Time
	ChunkCreated time.Time
}

// AudioChunk is a variable-length contiguous segment of audio selected as one
// unit of transcription.
type AudioChunk struct {
	// Samples is contiguous 16 kHz mono PCM. Never empty.
	Samples []int16

	// ID increases strictly per pipeline, starting at 0.
	ID uint64

	// Timing carries the checkpoints from the seeding speech frame.
	Timing ChunkTiming
}

// Duration returns the audio duration covered by the chunk.
func (c AudioChunk) Duration() time.Duration {
	return samplesDuration(len(c.Samples))
}

// TranscribedText is the cleaned output of one chunk.
type TranscribedText struct {
	// Text is the cleaned transcription. Empty results are dropped before the
	// sink ever sees them.
	Text string

	// Language is the language reported by the model (e.g. "en").
	Language string

	// Confidence is the model's confidence in [0, 1].
	Confidence float64

	// Timing carries the chunk checkpoints; TranscriptionDone is stamped by
	// the transcriber stage, OutputDone later by the sink.
	Timing            ChunkTiming
	TranscriptionDone time.Time

	// AudioDuration is the duration of the chunk this text came from.
	AudioDuration time.Duration

	// ChunkID is the ID of the originating chunk.
	ChunkID uint64

	// Events optionally replaces Text with an ordered event sequence (literal
	// text and named key combos). When empty, the sink treats Text as a single
	// text event.
	Events []textsink.Event
}

func samplesDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}

// msToSamples returns the sample count for ms milliseconds of audio.
func msToSamples(ms int) int {
	return ms * SampleRate / 1000
}
