package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs a provider that records spans in memory
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := TracerProvider()
	install(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		install(previous)
	})
	return recorder
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestStartCommandSpan(t *testing.T) {
	recorder := setupTestTracer(t)

	ctx, span := StartCommandSpan(context.Background(), "validate")
	assert.NotEqual(t, context.Background(), ctx)
	RecordSuccess(span, attribute.Int("phases", 3))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "command.validate", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "validate", attrs["command"])
	assert.Equal(t, "cli", attrs["component"])
	assert.Equal(t, "3", attrs["phases"])
}

func TestRecordError(t *testing.T) {
	recorder := setupTestTracer(t)

	_, span := StartMonitorSpan(context.Background(), "once")
	RecordError(span, nil)
	RecordError(span, errors.New("collector failed"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "monitor.run", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "collector failed", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "true", attrMap(spans[0].Attributes())["error"])
}
