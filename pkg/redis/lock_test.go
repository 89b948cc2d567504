package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a reachable server: REDIS_HOST=localhost go test ./pkg/redis/...
func newTestClient(t *testing.T) *Client {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}

	client, err := NewClient(context.Background(), Config{Host: host, Port: 6379, KeyPrefix: "heather:test:"}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLocker(t *testing.T) {
	client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()
	key := uuid.New().String()

	lock, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	err = locker.WithLock(ctx, key, time.Minute, func() error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)

	ran := false
	require.NoError(t, locker.WithLock(ctx, key, time.Minute, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestKeyNamespacing(t *testing.T) {
	client := &Client{prefix: defaultKeyPrefix}
	assert.Equal(t, "heather:lock:rp00042", client.key("lock", "rp00042"))
	assert.Equal(t, "heather:", client.key())
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "localhost:6379", Config{Host: "localhost", Port: 6379}.addr())
	assert.Equal(t, "[::1]:6380", Config{Host: "::1", Port: 6380}.addr())
}
