package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const tracesFile = "traces.txt"

func newFileExporter(w io.Writer) (trace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

// newCollectorExporter sends traces to an OTLP/HTTP collector, e.g. "localhost:4318".
func newCollectorExporter(endpoint string) (trace.SpanExporter, error) {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	return otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(endpoint),
	)
}

func newResource(serviceName string) *resource.Resource {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		serviceName = name
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion("0.1.0"),
	)
}

// NewProvider creates a trace provider and installs it as the global one. Spans go to the
// OTLP collector at endpoint, or to traces.txt when endpoint is empty.
//
// Returns a teardown func
func NewProvider(serviceName, endpoint string) func() {
	var (
		exp trace.SpanExporter
		f   *os.File
		err error
	)

	if endpoint != "" {
		exp, err = newCollectorExporter(endpoint)
	} else {
		slog.Info("Using file-based tracing", slog.String("file", tracesFile))
		f, err = os.Create(tracesFile)
		if err == nil {
			exp, err = newFileExporter(f)
		}
	}

	if err != nil {
		slog.Error("Unable to create trace exporter, tracing is disabled", slog.Any("error", err))
		return func() {}
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(newResource(serviceName)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("Unable to shutdown trace provider", slog.Any("error", err))
		}

		if f != nil {
			if err := f.Close(); err != nil {
				slog.Error("Unable to close traces file", slog.Any("error", err))
			}
		}
	}
}
