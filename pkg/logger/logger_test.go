package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(tt.level)
			require.NotNil(t, log)
			assert.True(t, log.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestContextLogger_AttachesIDs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "alice")
	cl.WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "alice", fields["user_id"])
	assert.NotContains(t, fields, "trace_id")
	assert.Equal(t, "req-1", RequestIDFrom(ctx))
}

func TestContextLogger_LogRequestLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := NewContextLogger(zap.New(core))
	ctx := context.Background()

	cl.LogRequest(ctx, "GET", "/health", 200, 1)
	cl.LogRequest(ctx, "POST", "/api/auth/login", 400, 2)
	cl.LogRequest(ctx, "GET", "/ready", 503, 3)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestContextLogger_LogError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := NewContextLogger(zap.New(core))

	cl.LogError(WithTraceID(context.Background(), "t-9"), errors.New("boom"), "save failed")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "save failed", entry.Message)
	assert.Equal(t, "boom", entry.ContextMap()["error"])
	assert.Equal(t, "t-9", entry.ContextMap()["trace_id"])
}

func TestNewWithFormat(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		log := NewWithFormat("warn", format)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	}
}
