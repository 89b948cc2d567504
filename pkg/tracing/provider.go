package tracing

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/heather/pkg/tracing/exporters"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type ProviderConfig struct {
	ServiceName string
	// Exporter is "none", "console" or "otlp".
	Exporter string
	OTLP     exporters.OTLPConfig
}

// NewProvider builds a tracer provider, registers it globally and points StartSpan at it.
// The returned function flushes and shuts the provider down.
func NewProvider(ctx context.Context, logger ectologger.Logger, config ProviderConfig) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	switch config.Exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "console":
		exporter = exporters.NewConsoleExporter(logger)
	case "otlp":
		otlpExporter, err := exporters.NewOTLPExporter(ctx, config.OTLP)
		if err != nil {
			return nil, err
		}
		exporter = otlpExporter
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", config.Exporter)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", config.ServiceName))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagator)
	SetTracer(provider.Tracer(config.ServiceName))

	return provider.Shutdown, nil
}
