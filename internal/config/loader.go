package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validLogLevels lists accepted server.log_level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// validSinkKinds lists accepted sink.kind values.
var validSinkKinds = []string{"injector", "stdout", "collector"}

// Load reads the YAML configuration file at path, layered over [Default],
// and returns the validated result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Unknown fields are rejected. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !slices.Contains(validLogLevels, cfg.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.VAD.FloorThreshold < 0 || cfg.VAD.FloorThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.floor_threshold %v must be in [0, 1]", cfg.VAD.FloorThreshold))
	}
	if cfg.VAD.SilenceDurationMS < 0 {
		errs = append(errs, fmt.Errorf("vad.silence_duration_ms %d must not be negative", cfg.VAD.SilenceDurationMS))
	}

	ch := cfg.Chunker
	switch {
	case ch.MinChunkMS <= 0:
		errs = append(errs, fmt.Errorf("chunker.min_chunk_ms %d must be positive", ch.MinChunkMS))
	case ch.TargetChunkMS < ch.MinChunkMS:
		errs = append(errs, fmt.Errorf("chunker.target_chunk_ms %d must be at least min_chunk_ms (%d)", ch.TargetChunkMS, ch.MinChunkMS))
	case ch.MaxChunkMS < ch.TargetChunkMS:
		errs = append(errs, fmt.Errorf("chunker.max_chunk_ms %d must be at least target_chunk_ms (%d)", ch.MaxChunkMS, ch.TargetChunkMS))
	}
	if ch.SilenceCutMS <= 0 {
		errs = append(errs, fmt.Errorf("chunker.silence_cut_ms %d must be positive", ch.SilenceCutMS))
	}
	if ch.PrerollMS < 0 {
		errs = append(errs, fmt.Errorf("chunker.preroll_ms %d must not be negative", ch.PrerollMS))
	}

	for name, v := range map[string]int{
		"channels.audio": cfg.Channels.Audio,
		"channels.vad":   cfg.Channels.Vad,
		"channels.chunk": cfg.Channels.Chunk,
		"channels.text":  cfg.Channels.Text,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s %d must be positive", name, v))
		}
	}

	if !slices.Contains(validSinkKinds, cfg.Sink.Kind) {
		errs = append(errs, fmt.Errorf("sink.kind %q is invalid; valid values: injector, stdout, collector", cfg.Sink.Kind))
	}
	if cfg.Sink.Verbosity < 0 || cfg.Sink.Verbosity > 2 {
		errs = append(errs, fmt.Errorf("sink.verbosity %d must be 0, 1, or 2", cfg.Sink.Verbosity))
	}

	return errors.Join(errs...)
}
