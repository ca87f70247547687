// Package whisper implements [stt.Transcriber] on top of the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// The model is loaded once at construction and shared by every call; each
// Transcribe creates its own whisper context, which is the unit of
// thread-safety in whisper.cpp — the shared model may be used from many
// goroutines, a context may not. That makes a *Transcriber safe to share
// between the pipeline stage and fan-out workers.
package whisper

import (
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/sottovoce/sotto/pkg/stt"
)

// LanguageAuto asks the model to detect the spoken language per chunk.
const LanguageAuto = "auto"

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the language code passed to whisper.cpp (e.g. "en",
// "de"), or [LanguageAuto] for per-chunk detection. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithThreads sets the inference thread count. 0 (the default) lets
// whisper.cpp decide.
func WithThreads(n int) Option {
	return func(t *Transcriber) { t.threads = n }
}

// Transcriber is a whisper.cpp-backed [stt.Transcriber].
type Transcriber struct {
	model     whisperlib.Model
	modelName string
	language  string
	threads   int
}

// New loads the whisper.cpp model at modelPath and returns a ready
// Transcriber. The caller must Close it when no longer needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	name := modelPath
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, ".bin")
	name = strings.TrimPrefix(name, "ggml-")

	t := &Transcriber{
		model:     model,
		modelName: name,
		language:  "en",
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference on the chunk and returns the
// concatenated segment text with a mean-token-probability confidence.
func (t *Transcriber) Transcribe(samples []int16) (stt.Result, error) {
	wctx, err := t.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if t.threads > 0 {
		wctx.SetThreads(uint(t.threads))
	}
	if err := wctx.SetLanguage(t.language); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: set language %q: %w", t.language, err)
	}
	wctx.SetTokenTimestamps(false)

	if err := wctx.Process(int16ToFloat32(samples), nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts      []string
		probSum    float64
		tokenCount int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			probSum += float64(tok.P)
			tokenCount++
		}
	}

	confidence := 1.0
	if tokenCount > 0 {
		confidence = probSum / float64(tokenCount)
	}

	lang := t.language
	if lang == LanguageAuto {
		lang = wctx.DetectedLanguage()
	}

	return stt.Result{
		Text:       strings.Join(parts, " "),
		Language:   lang,
		Confidence: confidence,
	}, nil
}

// ModelName returns the model file stem (e.g. "base.en").
func (t *Transcriber) ModelName() string { return t.modelName }

// Ready reports whether the model is loaded.
func (t *Transcriber) Ready() bool { return t.model != nil }

// int16ToFloat32 converts PCM to the normalized float32 mono samples
// whisper.cpp expects.
func int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Compile-time assertion that Transcriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)
