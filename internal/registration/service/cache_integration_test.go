//go:build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
	"registro/internal/platform/config"
	platredis "registro/internal/platform/redis"
	"registro/internal/registration/service"
	"registro/pkg/testutil/containers"
)

func newRedisCache(t *testing.T, ttl time.Duration) *service.RedisCache {
	t.Helper()

	rc := containers.NewRedisContainer(t)

	client, err := platredis.New(config.RedisConfig{URL: rc.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache := service.NewRedisCache(client, ttl)
	require.NotNil(t, cache)
	return cache
}

func TestRedisCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cache := newRedisCache(t, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "example.rw")
	assert.False(t, ok)

	verdict := backends.Availability{Domain: "example.rw", Available: true, Premium: false}
	cache.Set(ctx, "example.rw", verdict)

	got, ok := cache.Get(ctx, "example.rw")
	require.True(t, ok)
	assert.Equal(t, verdict, *got)

	// Other domains stay misses.
	_, ok = cache.Get(ctx, "other.rw")
	assert.False(t, ok)
}

func TestRedisCacheExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cache := newRedisCache(t, time.Second)
	ctx := context.Background()

	cache.Set(ctx, "fleeting.rw", backends.Availability{Domain: "fleeting.rw", Available: true})

	_, ok := cache.Get(ctx, "fleeting.rw")
	require.True(t, ok)

	time.Sleep(1500 * time.Millisecond)

	_, ok = cache.Get(ctx, "fleeting.rw")
	assert.False(t, ok)
}
