package pipeline

import (
	"time"

	"github.com/sottovoce/sotto/internal/observe"
)

// ChunkerConfig holds the adaptive chunker parameters. All durations refer
// to audio time except where noted.
type ChunkerConfig struct {
	// MinChunk is the duration below which a chunk is flushed only on
	// EOS/shutdown.
	MinChunk time.Duration

	// TargetChunk is the preferred chunk length; the chunker cuts at the
	// nearest qualifying silence beyond it.
	TargetChunk time.Duration

	// MaxChunk is the hard ceiling; reached, the chunker cuts unconditionally.
	MaxChunk time.Duration

	// SilenceCut is the consecutive-silence run that permits a cut past
	// MinChunk.
	SilenceCut time.Duration

	// Preroll is the audio kept before the first detected speech frame so
	// the opening phoneme is not clipped.
	Preroll time.Duration
}

// DefaultChunkerConfig returns the stock chunker parameters.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MinChunk:    500 * time.Millisecond,
		TargetChunk: 4 * time.Second,
		MaxChunk:    15 * time.Second,
		SilenceCut:  400 * time.Millisecond,
		Preroll:     200 * time.Millisecond,
	}
}

// Cut reasons recorded with each emitted chunk.
const (
	cutMaxCeiling  = "max_ceiling"
	cutNatural     = "natural"
	cutLongSilence = "long_silence"
	cutFinalDrain  = "final_drain"
)

// chunkerStage accumulates speech-prefixed audio into variable-length chunks
// cut at silence runs or hard ceilings. It holds two states:
//
//   - Idle: no speech seen since the last cut. Incoming silence feeds a
//     pre-roll ring of the most recent Preroll worth of audio.
//   - Collecting: a chunk is being accumulated. Every frame (speech and
//     silence) is appended; cut rules are evaluated after each append.
//
// The stage is infallible — an internal inconsistency is a bug, not a
// runtime error.
type chunkerStage struct {
	cfg     ChunkerConfig
	clock   Clock
	metrics *observe.Metrics

	// preroll is the Idle-state ring of recent audio, capped at cfg.Preroll.
	preroll []int16

	// Collecting state.
	collecting      bool
	buf             []int16
	silenceRun      int // samples of consecutive trailing silence
	timing          ChunkTiming
	collectingSince time.Time

	nextChunkID uint64
}

func newChunkerStage(cfg ChunkerConfig, clock Clock, metrics *observe.Metrics) *chunkerStage {
	return &chunkerStage{cfg: cfg, clock: clock, metrics: metrics}
}

func (c *chunkerStage) run(in <-chan VadFrame, out chan<- AudioChunk) {
	defer close(out)
	for frame := range in {
		c.process(frame, out)
	}
	// Input closed: EOS or shutdown. Drain any chunk worth keeping.
	c.drain(out)
}

func (c *chunkerStage) process(frame VadFrame, out chan<- AudioChunk) {
	if !c.collecting {
		if !frame.IsSpeech {
			c.appendPreroll(frame.Samples)
			return
		}
		// Speech onset: seed the chunk with the pre-roll, stamp the
		// checkpoints from this frame, start collecting.
		c.buf = append(c.buf[:0], c.preroll...)
		c.preroll = c.preroll[:0]
		c.buf = append(c.buf, frame.Samples...)
		c.silenceRun = 0
		c.timing = ChunkTiming{
			CaptureStart: frame.CapturedAt,
			VadStart:     frame.ClassifiedAt,
		}
		c.collectingSince = c.clock.Now()
		c.collecting = true
		c.maybeCut(out)
		return
	}

	c.buf = append(c.buf, frame.Samples...)
	if frame.IsSpeech {
		c.silenceRun = 0
	} else {
		c.silenceRun += len(frame.Samples)
	}
	c.maybeCut(out)
}

// maybeCut evaluates the cut rules in priority order and emits when one
// fires. The trailing silence stays in the cut chunk — it helps the model —
// and is not re-enqueued into the next one.
func (c *chunkerStage) maybeCut(out chan<- AudioChunk) {
	accumulated := samplesDuration(len(c.buf))
	silence := samplesDuration(c.silenceRun)

	switch {
	case accumulated >= c.cfg.MaxChunk:
		c.cut(out, cutMaxCeiling)
	case accumulated >= c.cfg.TargetChunk && silence >= c.cfg.SilenceCut:
		c.cut(out, cutNatural)
	case accumulated >= c.cfg.MinChunk && silence >= c.cfg.SilenceCut &&
		c.clock.Now().Sub(c.collectingSince) >= c.cfg.TargetChunk:
		// Long-silence fallback: mostly-quiet speech would otherwise sit in
		// the buffer until TargetChunk of audio accumulated; bound the
		// latency by wall time instead.
		c.cut(out, cutLongSilence)
	}
}

// drain emits the in-flight chunk on EOS/shutdown if it carries at least
// half of MinChunk; shorter remainders are discarded.
func (c *chunkerStage) drain(out chan<- AudioChunk) {
	if !c.collecting {
		return
	}
	if samplesDuration(len(c.buf)) < c.cfg.MinChunk/2 {
		c.reset()
		return
	}
	c.cut(out, cutFinalDrain)
}

func (c *chunkerStage) cut(out chan<- AudioChunk, reason string) {
	samples := make([]int16, len(c.buf))
	copy(samples, c.buf)

	timing := c.timing
	timing.ChunkCreated = c.clock.Now()

	chunk := AudioChunk{
		Samples: samples,
		ID:      c.nextChunkID,
		Timing:  timing,
	}
	c.nextChunkID++
	c.reset()

	c.metrics.RecordChunk(reason, chunk.Duration())
	out <- chunk
}

func (c *chunkerStage) reset() {
	c.collecting = false
	c.buf = c.buf[:0]
	c.silenceRun = 0
	c.timing = ChunkTiming{}
}

// appendPreroll pushes samples into the Idle ring, evicting the oldest
// audio beyond the configured pre-roll window.
func (c *chunkerStage) appendPreroll(samples []int16) {
	c.preroll = append(c.preroll, samples...)
	limit := msToSamples(int(c.cfg.Preroll / time.Millisecond))
	if over := len(c.preroll) - limit; over > 0 {
		c.preroll = append(c.preroll[:0], c.preroll[over:]...)
	}
}
