package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "relaychat", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraceSignalFrame_Attributes(t *testing.T) {
	rec := installRecorder(t)

	_, span := TraceSignalFrame(context.Background(), "call-request", "alice")
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "signal.call-request", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "alice", attrs["relay.user_id"])
	assert.Equal(t, "call-request", attrs["websocket.event"])
}

func TestRecordError_MarksSpan(t *testing.T) {
	rec := installRecorder(t)

	ctx, span := TraceStoreOperation(context.Background(), "sqlite", "save_message")
	RecordError(ctx, errors.New("disk full"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "disk full", spans[0].Status().Description)
}

func TestRecordError_NoSpanIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(context.Background(), errors.New("ignored"))
	})
}

func TestTraceHTTPRequest(t *testing.T) {
	rec := installRecorder(t)

	_, span := TraceHTTPRequest(context.Background(), "GET", "/api/messages/:id")
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "http.GET /api/messages/:id", rec.Ended()[0].Name())
}
