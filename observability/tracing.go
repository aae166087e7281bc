package observability

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName identifies annostat spans.
const ServiceName = "annostat"

// SetupTracing installs a global tracer provider that writes spans to w as
// pretty-printed JSON. The returned function flushes and shuts it down.
// When enabled is false the global no-op provider is left in place.
func SetupTracing(ctx context.Context, w io.Writer, enabled bool) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !enabled {
		return noop, nil
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
