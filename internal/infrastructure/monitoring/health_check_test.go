package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecker_CheckAll(t *testing.T) {
	h := NewHealthChecker()
	h.AddPingCheck("storage", pingFunc(func(context.Context) error { return nil }), 0, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["storage"])
	assert.True(t, h.IsReady(context.Background()))

	h.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") }, 0, time.Second)

	status = h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "connection refused", status.Checks["redis"])
	assert.Equal(t, StatusHealthy, status.Checks["storage"])
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthChecker_Timeout(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 0, 20*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"])
}

func TestHealthChecker_BackgroundChecks(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("flaky", func(context.Context) error { return errors.New("down") }, 10*time.Millisecond, time.Second)

	var failures atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.StartBackgroundChecks(ctx, func(name string, err error) {
		if name == "flaky" {
			failures.Add(1)
		}
	})

	require.Eventually(t, func() bool { return failures.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
