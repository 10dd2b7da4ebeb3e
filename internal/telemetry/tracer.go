// Package telemetry bootstraps OpenTelemetry tracing for the command line
// tools.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitTracer installs a global tracer provider that writes spans to w as
// pretty-printed JSON. Pipeline runs and outgoing HTTP calls show up as
// nested spans. The returned function flushes and stops the provider.
func InitTracer(serviceName string, w io.Writer, logger *slog.Logger) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	// Spans are exported synchronously so short-lived commands lose nothing.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Debug("OpenTelemetry initialized", slog.String("service", serviceName))

	return tp, tp.Shutdown, nil
}
