package pipeline

import (
	"testing"
	"time"
)

// testChunkerConfig returns a small-scale config so tests stay readable:
// frames are 10 ms (160 samples), min 100 ms, target 400 ms, max 1 s.
func testChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MinChunk:    100 * time.Millisecond,
		TargetChunk: 400 * time.Millisecond,
		MaxChunk:    1 * time.Second,
		SilenceCut:  40 * time.Millisecond,
		Preroll:     20 * time.Millisecond,
	}
}

func speechFrame(seq uint64, clock Clock) VadFrame {
	return VadFrame{
		AudioFrame:   AudioFrame{Samples: make([]int16, 160), CapturedAt: clock.Now(), Sequence: seq},
		IsSpeech:     true,
		ClassifiedAt: clock.Now(),
	}
}

func silenceFrame(seq uint64, clock Clock) VadFrame {
	f := speechFrame(seq, clock)
	f.IsSpeech = false
	return f
}

func collectChunks(out chan AudioChunk) []AudioChunk {
	close(out)
	var chunks []AudioChunk
	for c := range out {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestChunker_SilenceOnlyEmitsNothing(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	c := newChunkerStage(testChunkerConfig(), clock, nil)
	out := make(chan AudioChunk, 16)

	for i := 0; i < 50; i++ {
		c.process(silenceFrame(uint64(i), clock), out)
	}
	c.drain(out)

	if chunks := collectChunks(out); len(chunks) != 0 {
		t.Fatalf("got %d chunks from pure silence, want 0", len(chunks))
	}
}

func TestChunker_NaturalCutAtSilenceBeyondTarget(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	c := newChunkerStage(testChunkerConfig(), clock, nil)
	out := make(chan AudioChunk, 16)

	// 40 speech frames = 400 ms reaches the target; 4 silence frames = 40 ms
	// satisfy the silence-cut run.
	seq := uint64(0)
	for i := 0; i < 40; i++ {
		c.process(speechFrame(seq, clock), out)
		seq++
	}
	for i := 0; i < 4; i++ {
		c.process(silenceFrame(seq, clock), out)
		seq++
	}

	chunks := collectChunks(out)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	// 400 ms speech + 40 ms trailing silence, no pre-roll (no leading silence).
	want := 440 * time.Millisecond
	if d := chunks[0].Duration(); d != want {
		t.Errorf("chunk duration = %v, want %v", d, want)
	}
}

func TestChunker_TrailingSilenceStaysOutOfNextChunk(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	c := newChunkerStage(testChunkerConfig(), clock, nil)
	out := make(chan AudioChunk, 16)

	seq := uint64(0)
	emit := func(speech bool, n int) {
		for i := 0; i < n; i++ {
			if speech {
				c.process(speechFrame(seq, clock), out)
			} else {
				c.process(silenceFrame(seq, clock), out)
			}
			seq++
		}
	}

	emit(true, 40)  // first utterance
	emit(false, 10) // cut fires after 4 silence frames; rest feeds pre-roll
	emit(true, 40)  // second utterance
	emit(false, 4)

	chunks := collectChunks(out)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].ID != 0 || chunks[1].ID != 1 {
		t.Errorf("chunk IDs = %d, %d, want 0, 1", chunks[0].ID, chunks[1].ID)
	}
	// Second chunk: 20 ms pre-roll + 400 ms speech + 40 ms silence.
	want := 460 * time.Millisecond
	if d := chunks[1].Duration(); d != want {
		t.Errorf("second chunk duration = %v, want %v", d, want)
	}
}

func TestChunker_HardCeilingCutsThroughContinuousSpeech(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	c := newChunkerStage(testChunkerConfig(), clock, nil)
	out := make(chan AudioChunk, 16)

	// 250 speech frames = 2.5 s of continuous speech against a 1 s ceiling.
	for i := 0; i < 250; i++ {
		c.process(speechFrame(uint64(i), clock), out)
	}
	c.drain(out)

	chunks := collectChunks(out)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3 (two ceiling cuts + final drain)", len(chunks))
	}
	for i, chunk := range chunks[:2] {
		if d := chunk.Duration(); d != 1*time.Second {
			t.Errorf("chunk %d duration = %v, want 1s", i, d)
		}
	}
	if d := chunks[2].Duration(); d != 500*time.Millisecond {
		t.Errorf("final chunk duration = %v, want 500ms", d)
	}
}

func TestChunker_LongSilenceFallbackBoundsLatency(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	c := newChunkerStage(testChunkerConfig(), clock, nil)
	out := make(chan AudioChunk, 16)

	// A short utterance past min but far from target, followed by silence.
	seq := uint64(0)
	for i := 0; i < 15; i++ { // 150 ms speech ≥ min
		c.process(speechFrame(seq, clock), out)
		seq++
	}
	for i := 0; i < 4; i++ { // silence run satisfied, but wall clock hasn't advanced
		c.process(silenceFrame(seq, clock), out)
		seq++
	}
	if chunks := len(out); chunks != 0 {
		t.Fatalf("cut fired before the wall-time fallback, got %d chunks", chunks)
	}

	// Advance past TargetChunk of wall time since collecting began; the next
	// silence frame triggers the fallback.
	clock.Advance(500 * time.Millisecond)
	c.process(silenceFrame(seq, clock), out)

	chunks := collectChunks(out)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 after wall-time fallback", len(chunks))
	}
}

func TestChunker_FinalDrainThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		speechFrames int
		wantChunks   int
	}{
		{"below half min is discarded", 4, 0}, // 40 ms < 50 ms
		{"at half min is emitted", 5, 1},      // 50 ms
		{"above half min is emitted", 9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := NewMockClock()
			c := newChunkerStage(testChunkerConfig(), clock, nil)
			out := make(chan AudioChunk, 16)

			for i := 0; i < tt.speechFrames; i++ {
				c.process(speechFrame(uint64(i), clock), out)
			}
			c.drain(out)

			if chunks := collectChunks(out); len(chunks) != tt.wantChunks {
				t.Errorf("got %d chunks, want %d", len(chunks), tt.wantChunks)
			}
		})
	}
}

func TestChunker_PrerollPreservesSpeechOnset(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	c := newChunkerStage(testChunkerConfig(), clock, nil)
	out := make(chan AudioChunk, 16)

	// Leading silence carries a recognizable sample value so we can verify
	// the pre-roll made it into the chunk.
	seq := uint64(0)
	for i := 0; i < 10; i++ {
		f := silenceFrame(seq, clock)
		for j := range f.Samples {
			f.Samples[j] = 7
		}
		c.process(f, out)
		seq++
	}
	for i := 0; i < 15; i++ {
		f := speechFrame(seq, clock)
		for j := range f.Samples {
			f.Samples[j] = 1000
		}
		c.process(f, out)
		seq++
	}
	c.drain(out)

	chunks := collectChunks(out)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	chunk := chunks[0]

	// Exactly 20 ms (320 samples) of pre-roll precede the speech.
	preroll := msToSamples(20)
	if len(chunk.Samples) != preroll+15*160 {
		t.Fatalf("chunk has %d samples, want %d", len(chunk.Samples), preroll+15*160)
	}
	for i := 0; i < preroll; i++ {
		if chunk.Samples[i] != 7 {
			t.Fatalf("sample %d = %d, want pre-roll value 7", i, chunk.Samples[i])
		}
	}
	if chunk.Samples[preroll] != 1000 {
		t.Errorf("first speech sample = %d, want 1000", chunk.Samples[preroll])
	}
}

func TestChunker_SampleConservationAndOrdering(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	cfg := testChunkerConfig()
	cfg.Preroll = 0 // simplify: every emitted sample must come from speech-run input
	c := newChunkerStage(cfg, clock, nil)
	out := make(chan AudioChunk, 64)

	// Tag every input sample with its global index so chunk contents can be
	// checked for ordering and duplication.
	var next int16
	seq := uint64(0)
	frame := func(speech bool) VadFrame {
		samples := make([]int16, 160)
		for i := range samples {
			samples[i] = next
			next++ // wraps eventually; fine for ordering within this test size
		}
		f := VadFrame{
			AudioFrame:   AudioFrame{Samples: samples, CapturedAt: clock.Now(), Sequence: seq},
			IsSpeech:     speech,
			ClassifiedAt: clock.Now(),
		}
		seq++
		return f
	}

	// Three utterances with silence gaps.
	for u := 0; u < 3; u++ {
		for i := 0; i < 45; i++ {
			c.process(frame(true), out)
		}
		for i := 0; i < 8; i++ {
			c.process(frame(false), out)
		}
	}
	c.drain(out)

	chunks := collectChunks(out)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	var lastID uint64
	var lastSample int16 = -1
	for i, chunk := range chunks {
		if i > 0 && chunk.ID <= lastID {
			t.Errorf("chunk ID %d not increasing after %d", chunk.ID, lastID)
		}
		lastID = chunk.ID
		for _, s := range chunk.Samples {
			if s <= lastSample {
				t.Fatalf("sample %d out of order (previous %d): duplicated or reordered audio", s, lastSample)
			}
			lastSample = s
		}
	}
}

func TestChunker_TimingCheckpointsCarried(t *testing.T) {
	t.Parallel()

	clock := NewMockClock()
	c := newChunkerStage(testChunkerConfig(), clock, nil)
	out := make(chan AudioChunk, 16)

	seedCapture := clock.Now()
	f := speechFrame(0, clock)
	c.process(f, out)

	clock.Advance(300 * time.Millisecond)
	for i := 1; i < 15; i++ {
		c.process(speechFrame(uint64(i), clock), out)
	}
	c.drain(out)

	chunks := collectChunks(out)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	timing := chunks[0].Timing
	if !timing.CaptureStart.Equal(seedCapture) {
		t.Errorf("CaptureStart = %v, want the seeding frame's capture time %v", timing.CaptureStart, seedCapture)
	}
	if !timing.ChunkCreated.Equal(clock.Now()) {
		t.Errorf("ChunkCreated = %v, want cut time %v", timing.ChunkCreated, clock.Now())
	}
}
