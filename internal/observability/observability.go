// Package observability provides OpenTelemetry integration for distributed
// tracing.
//
// Traces are exported over OTLP HTTP to a local collector (default
// localhost:4318). The collector handles authentication and forwarding to
// whatever backend the deployment uses, so no API key ever reaches the
// process.
//
// # Configuration
//
// Environment variables (optional):
//   - SIMCOACH_TELEMETRY_ENABLED: enable the exporter
//   - SIMCOACH_OTLP_ENDPOINT: override the collector endpoint
//
// Config file (~/.simcoach/config.yaml):
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  service_name: "simcoach"
//	  environment: "dev"
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/simcoach/simcoach/internal/log"
)

// Config for the OTLP trace exporter.
type Config struct {
	// Enabled turns the exporter on. Disabled means a no-op tracer.
	Enabled bool
	// Endpoint is the collector's OTLP HTTP endpoint (default: localhost:4318).
	Endpoint string
	// ServiceName tags exported spans (default: simcoach).
	ServiceName string
	// Environment is the deployment environment (dev, prod).
	Environment string

	Logger log.Logger
}

// DefaultEndpoint is the default OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// DefaultServiceName tags spans when no name is configured.
const DefaultServiceName = "simcoach"

// Setup builds a tracer provider exporting over OTLP HTTP and returns a
// tracer plus a shutdown function that flushes pending spans. When tracing
// is disabled or the exporter cannot be created, a no-op tracer and a
// no-op shutdown are returned; tracing never blocks startup.
func Setup(ctx context.Context, cfg Config) (trace.Tracer, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer(DefaultServiceName), noShutdown, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	// Local collectors speak plain HTTP.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		}
		return noop.NewTracerProvider().Tracer(serviceName), noShutdown, nil
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	if cfg.Logger != nil {
		cfg.Logger.Debug("tracing enabled",
			"endpoint", endpoint,
			"service", serviceName,
			"environment", cfg.Environment,
		)
	}

	return provider.Tracer(serviceName), provider.Shutdown, nil
}
