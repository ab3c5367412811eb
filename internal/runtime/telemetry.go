package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/bloomlabs/bloom-core/internal/config"
)

// telemetry holds the process-wide trace and metric providers. Metrics are
// scraped from the runtime mux; traces go to an OTLP collector when one is
// configured and to stdout otherwise.
type telemetry struct {
	metrics http.Handler
	closers []func(context.Context) error
}

func (t *telemetry) Close(ctx context.Context) error {
	var errs []error
	for _, closeFn := range t.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func initTelemetry(cfg config.Config, logger *slog.Logger) (*telemetry, error) {
	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.RuntimeName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	spans, err := newSpanExporter(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	traces := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(traces)

	prom, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	meters := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(prom),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meters)

	return &telemetry{
		metrics: promhttp.Handler(),
		closers: []func(context.Context) error{meters.Shutdown, traces.Shutdown},
	}, nil
}

func newSpanExporter(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (sdktrace.SpanExporter, error) {
	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		logger.Info("telemetry initialized", slog.String("exporter", "otlp"), slog.String("endpoint", endpoint))
		return otlptracegrpc.New(ctx, opts...)
	}
	logger.Info("telemetry initialized", slog.String("exporter", "stdout"))
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}
