// Package tracing configures OpenTelemetry tracing for the service.
package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Config controls tracing.
type Config struct {
	Enabled        bool
	Endpoint       string // OTLP/HTTP endpoint; empty uses the exporter's environment defaults
	ServiceName    string
	ServiceVersion string
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Setup installs the global propagator and, when enabled, an OTLP/HTTP tracer
// provider. When disabled the global no-op tracer stays in place.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	var opts []otlptracehttp.Option
	if endpoint := cfg.Endpoint; endpoint != "" {
		switch {
		case strings.HasPrefix(endpoint, "http://"):
			opts = append(opts, otlptracehttp.WithEndpoint(strings.TrimPrefix(endpoint, "http://")), otlptracehttp.WithInsecure())
		case strings.HasPrefix(endpoint, "https://"):
			opts = append(opts, otlptracehttp.WithEndpoint(strings.TrimPrefix(endpoint, "https://")))
		default:
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		}
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating otlp http exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("service", cfg.ServiceName),
	)

	return tp.Shutdown, nil
}
