package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/sottovoce/sotto/internal/observe"
	"github.com/sottovoce/sotto/pkg/audio"
)

// defaultPollInterval is the capture poll cadence: ~60 Hz, matching the
// frame sizes live sources deliver.
const defaultPollInterval = 16 * time.Millisecond

// captureLoop polls an [audio.Source] and feeds stamped frames into the
// audio channel. It is the sole producer of that channel and closes it when
// the loop ends (shutdown or source EOS).
type captureLoop struct {
	source       audio.Source
	clock        Clock
	reporter     ErrorReporter
	metrics      *observe.Metrics
	running      *atomic.Bool
	sequence     *atomic.Uint64
	pollInterval time.Duration
}

// run drives the poll loop. The source has already been started by the
// orchestrator; run stops it on the way out.
func (c *captureLoop) run(out chan<- AudioFrame) {
	defer close(out)
	defer func() {
		_ = c.source.Stop()
	}()

	for c.running.Load() {
		samples, err := c.source.ReadSamples()
		if err != nil {
			// Transient: report and keep polling.
			c.reporter.Report("capture", SeverityRecoverable, "audio read failed: "+err.Error())
			time.Sleep(c.pollInterval)
			continue
		}

		// Empty read means the source is exhausted (file sources at EOF).
		if len(samples) == 0 {
			return
		}

		frame := AudioFrame{
			Samples:    samples,
			CapturedAt: c.clock.Now(),
			Sequence:   c.sequence.Add(1) - 1,
		}

		// Drop on full: never block the capture cadence on a stalled
		// downstream. Ordering among delivered frames is preserved.
		select {
		case out <- frame:
			c.metrics.RecordFrameCaptured()
		default:
			c.metrics.RecordFrameDropped()
		}

		time.Sleep(c.pollInterval)
	}
}
