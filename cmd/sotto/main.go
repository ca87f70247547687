// Command sotto is the offline voice-typing engine: microphone → Whisper →
// focused window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sottovoce/sotto/internal/config"
	"github.com/sottovoce/sotto/internal/observe"
	"github.com/sottovoce/sotto/internal/pipeline"
	"github.com/sottovoce/sotto/pkg/audio"
	"github.com/sottovoce/sotto/pkg/audio/mic"
	"github.com/sottovoce/sotto/pkg/audio/wavfile"
	"github.com/sottovoce/sotto/pkg/correct"
	"github.com/sottovoce/sotto/pkg/stt"
	"github.com/sottovoce/sotto/pkg/stt/whisper"
	"github.com/sottovoce/sotto/pkg/textsink"
	"github.com/sottovoce/sotto/pkg/textsink/injector"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	wavPath := flag.String("wav", "", "transcribe a WAV file instead of capturing the microphone")
	once := flag.Bool("once", false, "collect one dictation session and print it on exit")
	pipeMode := flag.Bool("stdout", false, "print transcriptions to stdout instead of injecting")
	verbosity := flag.Int("verbosity", -1, "override sink verbosity (0=quiet, 1=results, 2=latency breakdown)")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	flag.Parse()

	if *listDevices {
		names, err := mic.ListDevices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "sotto: %v\n", err)
			return 1
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sotto: %v\n", err)
		return 1
	}
	if *verbosity >= 0 {
		cfg.Sink.Verbosity = *verbosity
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	// ── Collaborators ─────────────────────────────────────────────────────────
	source := buildSource(cfg, *wavPath)

	transcriber, closeTranscriber, err := buildTranscriber(cfg)
	if err != nil {
		slog.Error("failed to load transcriber", "err", err)
		return 1
	}
	defer closeTranscriber()

	sink := buildSink(cfg, *once, *pipeMode)

	// ── Observability ─────────────────────────────────────────────────────────
	var metrics *observe.Metrics
	if cfg.Server.MetricsAddr != "" {
		var shutdown func(context.Context) error
		metrics, shutdown, err = observe.InitProvider(context.Background(), observe.ProviderConfig{
			ListenAddr: cfg.Server.MetricsAddr,
			Ready: func(context.Context) error {
				if !transcriber.Ready() {
					return errors.New("transcriber not ready")
				}
				return nil
			},
		})
		if err != nil {
			slog.Error("failed to initialise metrics", "err", err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if len(cfg.Transcriber.Vocabulary) > 0 {
		opts = append(opts, pipeline.WithCorrector(correct.NewPhonetic(cfg.Transcriber.Vocabulary)))
	}

	p := pipeline.New(cfg.Pipeline(), opts...)
	handle, err := p.Start(source, transcriber, sink)
	if err != nil {
		slog.Error("failed to start pipeline", "err", err)
		return 1
	}

	slog.Info("sotto listening", "model", transcriber.ModelName(), "sink", sink.Name())

	// ── Wait for Ctrl+C or source EOS ─────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutdown signal received, stopping…")
	case <-handle.Done():
		slog.Info("audio source exhausted, draining…")
	}

	text, ok := handle.Stop()
	if *once && ok {
		fmt.Println(text)
	}
	return 0
}

// loadConfig loads the file at path, falling back to defaults when the
// default path does not exist (first run needs no config file).
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath() {
		return config.Default(), nil
	}
	return nil, err
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sotto.yaml"
	}
	return dir + "/sotto/config.yaml"
}

// buildSource picks the WAV file source when -wav is given, the microphone
// otherwise.
func buildSource(cfg *config.Config, wavPath string) audio.Source {
	if wavPath != "" {
		return wavfile.New(wavPath)
	}
	var opts []mic.Option
	if cfg.Audio.Device != "" {
		opts = append(opts, mic.WithDevice(cfg.Audio.Device))
	}
	return mic.New(opts...)
}

// buildTranscriber loads the configured whisper models: one model directly,
// several as a fan-out. Returns a close function releasing every model.
func buildTranscriber(cfg *config.Config) (stt.Transcriber, func(), error) {
	if len(cfg.Transcriber.Models) == 0 {
		return nil, nil, errors.New("transcriber.models is empty; configure at least one whisper model path")
	}

	opts := []whisper.Option{whisper.WithLanguage(cfg.Transcriber.Language)}
	if cfg.Transcriber.Threads > 0 {
		opts = append(opts, whisper.WithThreads(cfg.Transcriber.Threads))
	}

	var loaded []*whisper.Transcriber
	closeAll := func() {
		for _, t := range loaded {
			_ = t.Close()
		}
	}

	children := make([]stt.Transcriber, 0, len(cfg.Transcriber.Models))
	for _, path := range cfg.Transcriber.Models {
		t, err := whisper.New(expandHome(path), opts...)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		loaded = append(loaded, t)
		children = append(children, t)
	}

	if len(children) == 1 {
		return children[0], closeAll, nil
	}
	fan, err := stt.NewFanOut(children)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return fan, closeAll, nil
}

// buildSink picks the sink: -once forces the collector, -stdout the pipe
// sink, otherwise the configured kind.
func buildSink(cfg *config.Config, once, pipeMode bool) textsink.Sink {
	switch {
	case once:
		return textsink.NewCollector()
	case pipeMode:
		return textsink.NewStdout()
	}
	switch cfg.Sink.Kind {
	case "stdout":
		return textsink.NewStdout()
	case "collector":
		return textsink.NewCollector()
	default:
		return injector.New(
			injector.WithMethod(injector.Method(cfg.Sink.Method)),
			injector.WithBackend(injector.Backend(cfg.Sink.Backend)),
			injector.WithPasteKey(cfg.Sink.PasteKey),
		)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
