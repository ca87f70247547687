package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault_HasSpecDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.VAD.FloorThreshold != 0.02 {
		t.Errorf("floor_threshold = %v, want 0.02", cfg.VAD.FloorThreshold)
	}
	if !cfg.VAD.AutoLevel {
		t.Error("auto_level disabled by default")
	}
	if cfg.Chunker.MinChunkMS != 500 || cfg.Chunker.TargetChunkMS != 4000 ||
		cfg.Chunker.MaxChunkMS != 15000 || cfg.Chunker.SilenceCutMS != 400 ||
		cfg.Chunker.PrerollMS != 200 {
		t.Errorf("chunker defaults = %+v", cfg.Chunker)
	}
	if cfg.Channels != (ChannelsConfig{Audio: 32, Vad: 16, Chunk: 4, Text: 4}) {
		t.Errorf("channel defaults = %+v", cfg.Channels)
	}
	if cfg.Sink.Kind != "injector" || cfg.Sink.PasteKey != "ctrl+v" {
		t.Errorf("sink defaults = %+v", cfg.Sink)
	}
	if len(cfg.Transcriber.HallucinationFilters) == 0 {
		t.Error("no default hallucination filters")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFromReader_OverridesDefaults(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: debug
  metrics_addr: "127.0.0.1:9090"
vad:
  floor_threshold: 0.05
  auto_level: false
chunker:
  max_chunk_ms: 30000
transcriber:
  models: ["/models/ggml-base.en.bin"]
  language: de
sink:
  kind: stdout
  verbosity: 2
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.VAD.FloorThreshold != 0.05 || cfg.VAD.AutoLevel {
		t.Errorf("vad = %+v", cfg.VAD)
	}
	if cfg.Chunker.MaxChunkMS != 30000 {
		t.Errorf("max_chunk_ms = %d", cfg.Chunker.MaxChunkMS)
	}
	// Untouched sections keep their defaults.
	if cfg.Chunker.MinChunkMS != 500 {
		t.Errorf("min_chunk_ms = %d, want default 500", cfg.Chunker.MinChunkMS)
	}
	if cfg.Transcriber.Language != "de" {
		t.Errorf("language = %q", cfg.Transcriber.Language)
	}
	if cfg.Sink.Kind != "stdout" || cfg.Sink.Verbosity != 2 {
		t.Errorf("sink = %+v", cfg.Sink)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("vad:\n  threshold: 0.1\n"))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadFromReader_EmptyInputYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Chunker.TargetChunkMS != 4000 {
		t.Errorf("target_chunk_ms = %d, want default", cfg.Chunker.TargetChunkMS)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Server.LogLevel = "chatty"
	cfg.VAD.FloorThreshold = 2
	cfg.Chunker.MinChunkMS = 0
	cfg.Channels.Audio = 0
	cfg.Sink.Kind = "teletype"
	cfg.Sink.Verbosity = 7

	err := Validate(cfg)
	if err == nil {
		t.Fatal("invalid config validated")
	}
	for _, want := range []string{"log_level", "floor_threshold", "min_chunk_ms", "channels.audio", "sink.kind", "verbosity"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestValidate_ChunkerOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"target below min", func(c *Config) { c.Chunker.TargetChunkMS = 100 }, "target_chunk_ms"},
		{"max below target", func(c *Config) { c.Chunker.MaxChunkMS = 1000 }, "max_chunk_ms"},
		{"zero silence cut", func(c *Config) { c.Chunker.SilenceCutMS = 0 }, "silence_cut_ms"},
		{"negative preroll", func(c *Config) { c.Chunker.PrerollMS = -1 }, "preroll_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestPipelineMapping(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.VAD.SilenceDurationMS = 250
	cfg.Sink.Verbosity = 1
	cfg.Transcriber.HallucinationFilters = []string{"Thank you."}

	p := cfg.Pipeline()
	if p.VAD.SilenceDuration != 250*time.Millisecond {
		t.Errorf("SilenceDuration = %v", p.VAD.SilenceDuration)
	}
	if p.Chunker.TargetChunk != 4*time.Second {
		t.Errorf("TargetChunk = %v", p.Chunker.TargetChunk)
	}
	if p.Channels.Audio != 32 || p.Channels.Text != 4 {
		t.Errorf("Channels = %+v", p.Channels)
	}
	if p.Verbosity != 1 {
		t.Errorf("Verbosity = %d", p.Verbosity)
	}
	if len(p.HallucinationFilters) != 1 {
		t.Errorf("HallucinationFilters = %v", p.HallucinationFilters)
	}
}
