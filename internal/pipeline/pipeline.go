package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sottovoce/sotto/internal/observe"
	"github.com/sottovoce/sotto/pkg/audio"
	"github.com/sottovoce/sotto/pkg/correct"
	"github.com/sottovoce/sotto/pkg/stt"
	"github.com/sottovoce/sotto/pkg/textsink"
)

// ChannelConfig holds the bounded channel capacities between stages. Small
// capacities bound end-to-end memory and surface backpressure quickly.
type ChannelConfig struct {
	Audio int
	Vad   int
	Chunk int
	Text  int
}

// DefaultChannelConfig returns the stock capacities: half a second of audio
// frames, a handful of everything else.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{Audio: 32, Vad: 16, Chunk: 4, Text: 4}
}

// Config assembles all pipeline parameters.
type Config struct {
	VAD      VADConfig
	Chunker  ChunkerConfig
	Channels ChannelConfig

	// HallucinationFilters lists phrases dropped when the cleaned text
	// matches exactly (case-insensitive).
	HallucinationFilters []string

	// Verbosity: 0 quiet, 1 one-line results + summary, 2 per-chunk latency
	// breakdown.
	Verbosity int
}

// DefaultConfig returns the stock pipeline configuration.
func DefaultConfig() Config {
	return Config{
		VAD:      DefaultVADConfig(),
		Chunker:  DefaultChunkerConfig(),
		Channels: DefaultChannelConfig(),
	}
}

// Pipeline builds and launches the streaming dataflow. Create with [New],
// configure with options, then call [Pipeline.Start] once.
type Pipeline struct {
	cfg       Config
	clock     Clock
	reporter  ErrorReporter
	metrics   *observe.Metrics
	corrector correct.Corrector
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithClock substitutes the monotonic clock. Used by tests.
func WithClock(c Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithReporter substitutes the error reporter. Default: [LogReporter].
func WithReporter(r ErrorReporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithMetrics attaches observability instruments. nil (the default) records
// nothing.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCorrector installs a transcript corrector applied to each cleaned
// transcription.
func WithCorrector(c correct.Corrector) Option {
	return func(p *Pipeline) { p.corrector = c }
}

// New returns an unstarted Pipeline.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		clock:    SystemClock{},
		reporter: LogReporter{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handle controls a running pipeline.
type Handle struct {
	running  *atomic.Bool
	wg       *sync.WaitGroup
	resultCh <-chan sinkResult
	done     chan struct{}

	stopOnce sync.Once
	result   sinkResult
}

// Running reports whether the pipeline is still accepting audio.
func (h *Handle) Running() bool { return h.running.Load() }

// Done returns a channel closed once every stage has exited — either after
// [Handle.Stop] or when the audio source reached EOS and the pipeline
// drained on its own. Stop must still be called to collect the result.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stop shuts the pipeline down and returns the sink's accumulated text, if
// any. The shutdown is cooperative: the capture loop exits on its next poll,
// the channel closes cascade through the stages, and each stage drains what
// it already holds. Stop waits for at most one in-flight transcription.
// Safe to call more than once; later calls return the same result.
func (h *Handle) Stop() (string, bool) {
	h.stopOnce.Do(func() {
		h.running.Store(false)
		h.wg.Wait()
		h.result = <-h.resultCh
	})
	return h.result.text, h.result.ok
}

// Start launches the pipeline over the given collaborators: an audio source,
// a shared transcriber handle, and a text sink. On success the source has
// been started and all stage goroutines are running; the returned Handle
// controls shutdown. A source Start failure aborts and is returned — the
// one construction error the pipeline itself can hit.
func (p *Pipeline) Start(source audio.Source, transcriber stt.Transcriber, sink textsink.Sink) (*Handle, error) {
	if err := source.Start(); err != nil {
		return nil, fmt.Errorf("pipeline: start audio source: %w", err)
	}

	running := &atomic.Bool{}
	running.Store(true)
	sequence := &atomic.Uint64{}

	audioCh := make(chan AudioFrame, p.cfg.Channels.Audio)
	vadCh := make(chan VadFrame, p.cfg.Channels.Vad)
	chunkCh := make(chan AudioChunk, p.cfg.Channels.Chunk)
	textCh := make(chan TranscribedText, p.cfg.Channels.Text)
	resultCh := make(chan sinkResult, 1)

	// Fatal reports must stop the pipeline; wrap the reporter so the flag is
	// set no matter which stage reports.
	reporter := &fatalTripReporter{inner: p.reporter, running: running}

	capture := &captureLoop{
		source:       source,
		clock:        p.clock,
		reporter:     reporter,
		metrics:      p.metrics,
		running:      running,
		sequence:     sequence,
		pollInterval: defaultPollInterval,
	}
	vad := newVADStage(p.cfg.VAD, p.clock)
	chunker := newChunkerStage(p.cfg.Chunker, p.clock, p.metrics)
	transcribe := newTranscriberStage(transcriber, p.clock, reporter, p.metrics,
		p.cfg.HallucinationFilters, p.corrector)
	sinker := newSinkStage(sink, p.clock, reporter, p.metrics, p.cfg.Verbosity, resultCh)

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); capture.run(audioCh) }()
	go func() { defer wg.Done(); vad.run(audioCh, vadCh) }()
	go func() { defer wg.Done(); chunker.run(vadCh, chunkCh) }()
	go func() { defer wg.Done(); transcribe.run(chunkCh, textCh) }()
	go func() { defer wg.Done(); sinker.run(textCh) }()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		running.Store(false)
		close(done)
	}()

	return &Handle{
		running:  running,
		wg:       &wg,
		resultCh: resultCh,
		done:     done,
	}, nil
}

// fatalTripReporter forwards every report and trips the shutdown flag on
// fatal severity.
type fatalTripReporter struct {
	inner   ErrorReporter
	running *atomic.Bool
}

func (r *fatalTripReporter) Report(stage string, severity Severity, message string) {
	r.inner.Report(stage, severity, message)
	if severity == SeverityFatal {
		r.running.Store(false)
	}
}
