// Package telemetry wires OpenTelemetry tracing for deployments and
// monitoring runs. Spans are exported as JSON through the stdout exporter,
// either to stderr or to a file.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	mu       sync.RWMutex
	provider trace.TracerProvider = noop.NewTracerProvider()
)

// ShutdownFunc flushes pending spans and releases the export destination
type ShutdownFunc func(context.Context) error

// InitProvider installs the process tracer provider. A disabled config
// installs a noop provider.
func InitProvider(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		install(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	w, release, err := exportWriter(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		_ = release()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		)),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter),
	)
	install(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if rerr := release(); err == nil {
			err = rerr
		}
		return err
	}, nil
}

func install(tp trace.TracerProvider) {
	mu.Lock()
	provider = tp
	mu.Unlock()
	otel.SetTracerProvider(tp)
}

// TracerProvider returns the provider installed by InitProvider, noop until
// then
func TracerProvider() trace.TracerProvider {
	mu.RLock()
	defer mu.RUnlock()
	return provider
}

func sampler(rate float64) sdktrace.Sampler {
	if rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// exportWriter resolves an endpoint: empty or "stderr", "stdout", or a file
// path that is appended to
func exportWriter(endpoint string) (io.Writer, func() error, error) {
	nop := func() error { return nil }
	switch endpoint {
	case "", "stderr":
		return os.Stderr, nop, nil
	case "stdout":
		return os.Stdout, nop, nil
	}
	f, err := os.OpenFile(endpoint, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace export file: %w", err)
	}
	return f, f.Close, nil
}
