// Package observe provides application-wide observability primitives for
// sotto: OpenTelemetry metrics with a Prometheus exporter bridge, plus the
// HTTP listener that exposes /metrics and the health endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API. The pipeline
// records into a [Metrics] value; a nil *Metrics is valid and records
// nothing, so tests and metrics-disabled runs need no stub wiring.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sotto metrics.
const meterName = "github.com/sottovoce/sotto"

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for dictation-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds all OpenTelemetry instruments for the pipeline. All fields
// are safe for concurrent use — the underlying OTel types handle their own
// synchronisation.
type Metrics struct {
	// ChunkDuration tracks the audio duration of emitted chunks.
	ChunkDuration metric.Float64Histogram

	// StageLatency tracks per-hop pipeline latency. Used with attribute
	// "hop" ∈ {"capture_to_vad", "vad_to_chunk", "chunk_to_transcribe",
	// "transcribe_to_output"}.
	StageLatency metric.Float64Histogram

	// EndToEnd tracks capture-start → output-done latency per transcription.
	EndToEnd metric.Float64Histogram

	// FramesCaptured counts frames delivered into the pipeline.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames dropped at capture because the audio
	// channel was full.
	FramesDropped metric.Int64Counter

	// ChunksEmitted counts chunks cut by the chunker. Used with attribute
	// "reason" ∈ {"max_ceiling", "natural", "long_silence", "final_drain"}.
	ChunksEmitted metric.Int64Counter

	// Transcriptions counts texts delivered to the sink.
	Transcriptions metric.Int64Counter

	// Hallucinations counts transcriptions dropped by the hallucination
	// filter.
	Hallucinations metric.Int64Counter

	// SinkFailures counts non-fatal sink delivery failures.
	SinkFailures metric.Int64Counter
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChunkDuration, err = m.Float64Histogram("sotto.chunk.duration",
		metric.WithDescription("Audio duration of emitted chunks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageLatency, err = m.Float64Histogram("sotto.pipeline.stage_latency",
		metric.WithDescription("Per-hop pipeline latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EndToEnd, err = m.Float64Histogram("sotto.pipeline.end_to_end",
		metric.WithDescription("Capture to output latency per transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesCaptured, err = m.Int64Counter("sotto.capture.frames",
		metric.WithDescription("Frames delivered into the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("sotto.capture.frames_dropped",
		metric.WithDescription("Frames dropped because the audio channel was full."),
	); err != nil {
		return nil, err
	}
	if met.ChunksEmitted, err = m.Int64Counter("sotto.chunker.chunks",
		metric.WithDescription("Chunks cut by the adaptive chunker."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("sotto.transcriber.results",
		metric.WithDescription("Transcriptions delivered downstream."),
	); err != nil {
		return nil, err
	}
	if met.Hallucinations, err = m.Int64Counter("sotto.transcriber.hallucinations",
		metric.WithDescription("Transcriptions dropped by the hallucination filter."),
	); err != nil {
		return nil, err
	}
	if met.SinkFailures, err = m.Int64Counter("sotto.sink.failures",
		metric.WithDescription("Non-fatal sink delivery failures."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// The record helpers below are nil-safe so the pipeline can hold a nil
// *Metrics when observability is disabled.

// RecordFrameCaptured counts one delivered frame.
func (m *Metrics) RecordFrameCaptured() {
	if m == nil {
		return
	}
	m.FramesCaptured.Add(context.Background(), 1)
}

// RecordFrameDropped counts one frame dropped at capture.
func (m *Metrics) RecordFrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Add(context.Background(), 1)
}

// RecordChunk counts one emitted chunk with its cut reason and duration.
func (m *Metrics) RecordChunk(reason string, duration time.Duration) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.ChunksEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.ChunkDuration.Record(ctx, duration.Seconds())
}

// RecordTranscription counts one delivered transcription.
func (m *Metrics) RecordTranscription() {
	if m == nil {
		return
	}
	m.Transcriptions.Add(context.Background(), 1)
}

// RecordHallucination counts one filtered hallucination.
func (m *Metrics) RecordHallucination() {
	if m == nil {
		return
	}
	m.Hallucinations.Add(context.Background(), 1)
}

// RecordSinkFailure counts one non-fatal delivery failure.
func (m *Metrics) RecordSinkFailure() {
	if m == nil {
		return
	}
	m.SinkFailures.Add(context.Background(), 1)
}

// RecordStageLatency records one per-hop latency sample.
func (m *Metrics) RecordStageLatency(hop string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("hop", hop)))
}

// RecordEndToEnd records one end-to-end latency sample.
func (m *Metrics) RecordEndToEnd(d time.Duration) {
	if m == nil {
		return
	}
	m.EndToEnd.Record(context.Background(), d.Seconds())
}
