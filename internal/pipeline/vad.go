package pipeline

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"
)

// VADConfig holds the voice-activity-detection parameters.
type VADConfig struct {
	// FloorThreshold is the minimum normalized RMS ([0, 1]) classified as
	// speech. With auto-leveling it is the lower bound of the adaptive
	// threshold.
	FloorThreshold float64

	// AutoLevel enables the adaptive threshold: an exponential moving average
	// of ambient (silence-classified) RMS, scaled by a margin and floored at
	// FloorThreshold.
	AutoLevel bool

	// SilenceDuration is the hysteresis hold: once speech has started,
	// classification stays "speech" until RMS has remained below the active
	// threshold for this long. Zero disables hysteresis (pure per-frame
	// classification).
	SilenceDuration time.Duration

	// ShowLevels enables the one-line level meter on stderr.
	ShowLevels bool
}

// DefaultVADConfig returns the stock VAD parameters.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		FloorThreshold:  0.02,
		AutoLevel:       true,
		SilenceDuration: 0,
	}
}

const (
	// ambientAlpha is the EMA weight for new ambient RMS observations.
	ambientAlpha = 0.05

	// ambientMargin scales the ambient estimate into the active threshold.
	ambientMargin = 3.0

	// meterInterval throttles the level meter redraw.
	meterInterval = 100 * time.Millisecond

	// meterWidth is the bar width of the level meter in cells.
	meterWidth = 30
)

// vadStage classifies each frame as speech or silence by RMS energy against
// an adaptive threshold. Every input frame is forwarded — the chunker needs
// the timing of silence frames too. Classification is infallible; this stage
// never reports errors.
type vadStage struct {
	cfg   VADConfig
	clock Clock

	// meterOut receives the level meter when ShowLevels is set. Defaults to
	// os.Stderr; tests substitute a buffer.
	meterOut io.Writer

	ambientRMS  float64
	haveAmbient bool
	inSpeech    bool
	silenceHeld time.Duration
	lastMeterAt time.Time
}

func newVADStage(cfg VADConfig, clock Clock) *vadStage {
	return &vadStage{cfg: cfg, clock: clock, meterOut: os.Stderr}
}

func (v *vadStage) run(in <-chan AudioFrame, out chan<- VadFrame) {
	defer close(out)
	for frame := range in {
		out <- v.classify(frame)
	}
}

// classify computes the frame's RMS, updates the adaptive threshold, and
// returns the frame with its classification attached.
func (v *vadStage) classify(frame AudioFrame) VadFrame {
	rms := frameRMS(frame.Samples)
	threshold := v.activeThreshold()

	raw := rms > threshold

	// Hysteresis: hold the speech classification through short dips.
	isSpeech := raw
	switch {
	case raw:
		v.inSpeech = true
		v.silenceHeld = 0
	case v.inSpeech && v.cfg.SilenceDuration > 0:
		v.silenceHeld += frame.Duration()
		if v.silenceHeld >= v.cfg.SilenceDuration {
			v.inSpeech = false
			v.silenceHeld = 0
		} else {
			isSpeech = true
		}
	default:
		v.inSpeech = false
		v.silenceHeld = 0
	}

	// Ambient estimate learns only from silence — speech must not raise the
	// noise floor.
	if !raw && v.cfg.AutoLevel {
		if v.haveAmbient {
			v.ambientRMS += ambientAlpha * (rms - v.ambientRMS)
		} else {
			v.ambientRMS = rms
			v.haveAmbient = true
		}
	}

	if v.cfg.ShowLevels {
		v.renderMeter(rms, threshold, isSpeech)
	}

	return VadFrame{
		AudioFrame:      frame,
		IsSpeech:        isSpeech,
		ActiveThreshold: threshold,
		ClassifiedAt:    v.clock.Now(),
	}
}

// activeThreshold returns the threshold in effect for the next frame.
func (v *vadStage) activeThreshold() float64 {
	if !v.cfg.AutoLevel || !v.haveAmbient {
		return v.cfg.FloorThreshold
	}
	return math.Max(v.cfg.FloorThreshold, v.ambientRMS*ambientMargin)
}

// renderMeter draws a throttled one-line ANSI meter. Best effort — a slow
// stderr must not stall the hot path, so redraws are rate-limited and write
// errors are ignored.
func (v *vadStage) renderMeter(rms, threshold float64, isSpeech bool) {
	now := v.clock.Now()
	if now.Sub(v.lastMeterAt) < meterInterval {
		return
	}
	v.lastMeterAt = now

	// Map RMS into bar cells on a mildly compressed scale so quiet rooms
	// still move the needle.
	level := int(math.Sqrt(rms) * float64(meterWidth) * 2)
	if level > meterWidth {
		level = meterWidth
	}
	mark := int(math.Sqrt(threshold) * float64(meterWidth) * 2)
	if mark >= meterWidth {
		mark = meterWidth - 1
	}

	var bar strings.Builder
	for i := 0; i < meterWidth; i++ {
		switch {
		case i == mark:
			bar.WriteByte('|')
		case i < level:
			bar.WriteByte('#')
		default:
			bar.WriteByte('-')
		}
	}
	state := "   "
	if isSpeech {
		state = "REC"
	}
	fmt.Fprintf(v.meterOut, "\r[%s] %s %.4f", bar.String(), state, rms)
}

// frameRMS returns sqrt(mean(sample²)) normalized to [0, 1] by the int16
// full scale.
func frameRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(len(samples))) / 32768
}
