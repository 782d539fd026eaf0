//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}

func TestRedisClient(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisConfig{URL: startRedis(t), Prefix: "test:"})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(ctx))

	_, err = client.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, client.Set(ctx, "answer:1", []byte("uno"), time.Minute))
	require.NoError(t, client.Set(ctx, "answer:2", []byte("dos"), time.Minute))
	require.NoError(t, client.Set(ctx, "info", []byte("tres"), time.Minute))

	got, err := client.Get(ctx, "answer:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), got)

	require.NoError(t, client.DeleteByPrefix(ctx, "answer:"))
	_, err = client.Get(ctx, "answer:2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = client.Get(ctx, "info")
	require.NoError(t, err)
	require.NoError(t, client.Delete(ctx, "info"))
	_, err = client.Get(ctx, "info")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{URL: "http://not-redis"})
	assert.Error(t, err)
}
