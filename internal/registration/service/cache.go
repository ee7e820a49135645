package service

import (
	"context"
	"encoding/json"
	"time"

	"registro/internal/backends"
	platredis "registro/internal/platform/redis"
)

// AvailabilityCache short-circuits repeated availability lookups. A miss is
// (nil, false); implementations swallow their own errors since the cache is
// purely an optimization.
type AvailabilityCache interface {
	Get(ctx context.Context, domain string) (*backends.Availability, bool)
	Set(ctx context.Context, domain string, verdict backends.Availability)
}

// RedisCache backs the availability cache with Redis. Verdicts expire after
// the configured TTL so storefront searches stay off the registry between
// refreshes.
type RedisCache struct {
	client *platredis.Client
	ttl    time.Duration
}

// NewRedisCache returns nil when the client is nil, which disables caching.
func NewRedisCache(client *platredis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, domain string) (*backends.Availability, bool) {
	raw, err := c.client.Get(ctx, cacheKey(domain)).Bytes()
	if err != nil {
		return nil, false
	}
	var v backends.Availability
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func (c *RedisCache) Set(ctx context.Context, domain string, verdict backends.Availability) {
	raw, err := json.Marshal(verdict)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(domain), raw, c.ttl)
}

func cacheKey(domain string) string {
	return "registro:availability:" + domain
}
