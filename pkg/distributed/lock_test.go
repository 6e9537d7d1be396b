package distributed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to RELAYCHAT_TEST_REDIS (default localhost:6379) and
// skips the test when nothing answers.
func testClient(t *testing.T) *redis.Client {
	addr := os.Getenv("RELAYCHAT_TEST_REDIS")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 500 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLock_ExclusiveUntilUnlocked(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "relaychat-test:lock:" + newHolderToken()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	first := NewLock(client, key, time.Second)
	second := NewLock(client, key, time.Second)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	err = second.Lock(ctx, 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, second.Unlock(ctx), ErrNotHeld)

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.Lock(ctx, time.Second))
	require.NoError(t, second.Unlock(ctx))
}

func TestLock_RenewedWhileHeld(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "relaychat-test:lock:" + newHolderToken()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	lock := NewLock(client, key, 300*time.Millisecond)
	require.NoError(t, lock.Lock(ctx, time.Second))

	time.Sleep(700 * time.Millisecond)
	exists, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, lock.Unlock(ctx))
	exists, err = client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
