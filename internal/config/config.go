// Package config provides the configuration schema, loader, and validation
// for sotto.
package config

import (
	"time"

	"github.com/sottovoce/sotto/internal/pipeline"
)

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	VAD         VADConfig         `yaml:"vad"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Sink        SinkConfig        `yaml:"sink"`
}

// ServerConfig holds logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn",
	// "error".
	LogLevel string `yaml:"log_level"`

	// MetricsAddr is the address of the /metrics + health listener
	// (e.g. "127.0.0.1:9090"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	// Device selects the capture device by name substring. Empty uses the
	// system default.
	Device string `yaml:"device"`
}

// VADConfig holds the voice-activity-detection parameters.
type VADConfig struct {
	// FloorThreshold is the minimum normalized RMS ([0, 1]) classified as
	// speech.
	FloorThreshold float64 `yaml:"floor_threshold"`

	// AutoLevel enables the adaptive threshold over the ambient noise
	// estimate.
	AutoLevel bool `yaml:"auto_level"`

	// SilenceDurationMS is the hysteresis hold in milliseconds; 0 disables.
	SilenceDurationMS int `yaml:"silence_duration_ms"`

	// ShowLevels enables the stderr level meter.
	ShowLevels bool `yaml:"show_levels"`
}

// ChunkerConfig holds the adaptive chunker parameters, all in milliseconds
// of audio time.
type ChunkerConfig struct {
	MinChunkMS    int `yaml:"min_chunk_ms"`
	TargetChunkMS int `yaml:"target_chunk_ms"`
	MaxChunkMS    int `yaml:"max_chunk_ms"`
	SilenceCutMS  int `yaml:"silence_cut_ms"`
	PrerollMS     int `yaml:"preroll_ms"`
}

// ChannelsConfig holds the bounded channel capacities between stages.
type ChannelsConfig struct {
	Audio int `yaml:"audio"`
	Vad   int `yaml:"vad"`
	Chunk int `yaml:"chunk"`
	Text  int `yaml:"text"`
}

// TranscriberConfig holds speech-to-text settings.
type TranscriberConfig struct {
	// Models lists whisper model file paths. One entry loads a single
	// transcriber; several entries fan out in parallel and the highest
	// confidence non-empty result wins.
	Models []string `yaml:"models"`

	// Language is the whisper language code, or "auto" for detection.
	Language string `yaml:"language"`

	// Threads is the inference thread count; 0 lets whisper.cpp decide.
	Threads int `yaml:"threads"`

	// HallucinationFilters lists phrases dropped when the cleaned
	// transcription matches exactly (case-insensitive).
	HallucinationFilters []string `yaml:"hallucination_filters"`

	// Vocabulary lists domain words corrected for phonetically (names,
	// project terms). Empty disables correction.
	Vocabulary []string `yaml:"vocabulary"`
}

// SinkConfig holds output settings.
type SinkConfig struct {
	// Kind selects the output backend: "injector", "stdout", or "collector".
	Kind string `yaml:"kind"`

	// Verbosity: 0 quiet, 1 one-line results + latency summary, 2 per-chunk
	// latency breakdown.
	Verbosity int `yaml:"verbosity"`

	// Method selects how the injector delivers text: "clipboard" or
	// "direct". Ignored by other sinks.
	Method string `yaml:"method"`

	// Backend forces the injector tool family: "auto", "wtype", "xdotool",
	// or "ydotool".
	Backend string `yaml:"backend"`

	// PasteKey is the combo pressed after a clipboard copy.
	PasteKey string `yaml:"paste_key"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: "info"},
		VAD: VADConfig{
			FloorThreshold: 0.02,
			AutoLevel:      true,
		},
		Chunker: ChunkerConfig{
			MinChunkMS:    500,
			TargetChunkMS: 4000,
			MaxChunkMS:    15000,
			SilenceCutMS:  400,
			PrerollMS:     200,
		},
		Channels: ChannelsConfig{Audio: 32, Vad: 16, Chunk: 4, Text: 4},
		Transcriber: TranscriberConfig{
			Language: "en",
			HallucinationFilters: []string{
				"Thank you.",
				"Thanks for watching.",
				"Thank you for watching.",
				"Subtitles by the Amara.org community",
				"you",
			},
		},
		Sink: SinkConfig{
			Kind:     "injector",
			Method:   "clipboard",
			Backend:  "auto",
			PasteKey: "ctrl+v",
		},
	}
}

// Pipeline maps the configuration onto the pipeline's own config types.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		VAD: pipeline.VADConfig{
			FloorThreshold:  c.VAD.FloorThreshold,
			AutoLevel:       c.VAD.AutoLevel,
			SilenceDuration: time.Duration(c.VAD.SilenceDurationMS) * time.Millisecond,
			ShowLevels:      c.VAD.ShowLevels,
		},
		Chunker: pipeline.ChunkerConfig{
			MinChunk:    time.Duration(c.Chunker.MinChunkMS) * time.Millisecond,
			TargetChunk: time.Duration(c.Chunker.TargetChunkMS) * time.Millisecond,
			MaxChunk:    time.Duration(c.Chunker.MaxChunkMS) * time.Millisecond,
			SilenceCut:  time.Duration(c.Chunker.SilenceCutMS) * time.Millisecond,
			Preroll:     time.Duration(c.Chunker.PrerollMS) * time.Millisecond,
		},
		Channels: pipeline.ChannelConfig{
			Audio: c.Channels.Audio,
			Vad:   c.Channels.Vad,
			Chunk: c.Channels.Chunk,
			Text:  c.Channels.Text,
		},
		HallucinationFilters: c.Transcriber.HallucinationFilters,
		Verbosity:            c.Sink.Verbosity,
	}
}
