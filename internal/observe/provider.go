package observe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProviderConfig configures the OpenTelemetry SDK provider and the metrics
// listener.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "sotto".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// ListenAddr is the address for the /metrics + health HTTP listener
	// (e.g. "127.0.0.1:9090"). Empty disables the listener; metrics are
	// still recorded and available to a custom reader.
	ListenAddr string

	// Ready is an optional readiness probe surfaced at /readyz.
	Ready func(ctx context.Context) error
}

// InitProvider initialises the OTel SDK with a Prometheus exporter bridge,
// registers it as the global meter provider, and (when configured) starts an
// HTTP listener serving /metrics, /healthz, and /readyz.
//
// Returns the initialised [Metrics] and a shutdown function that stops the
// listener and flushes the provider. Call the shutdown function in a defer
// from main().
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Metrics, func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sotto"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	metrics, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	var shutdownFuncs []func(context.Context) error
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)

	if cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		NewHealth(cfg.Ready).Register(mux)

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics listener failed", "addr", cfg.ListenAddr, "err", err)
			}
		}()
		shutdownFuncs = append(shutdownFuncs, srv.Shutdown)
	}

	shutdown := func(ctx context.Context) error {
		var errs []error
		// Reverse order: listener first, provider last.
		for n := len(shutdownFuncs) - 1; n >= 0; n-- {
			errs = append(errs, shutdownFuncs[n](ctx))
		}
		return errors.Join(errs...)
	}
	return metrics, shutdown, nil
}
