package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "civicpulse:rating:stats"
	// DefaultCacheTTL bounds staleness if an invalidation is lost.
	DefaultCacheTTL = 30 * time.Second
)

// RedisCache stores aggregates under a generation-scoped key. Invalidate
// bumps the generation counter with INCR.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

type CacheOption func(*RedisCache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithKeyPrefix(prefix string) CacheOption {
	return func(c *RedisCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

func NewRedisCache(client *redis.Client, opts ...CacheOption) *RedisCache {
	c := &RedisCache{client: client, ttl: DefaultCacheTTL, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) generationKey() string { return c.keyPrefix + ":gen" }

func (c *RedisCache) dataKey(generation int64) string {
	return fmt.Sprintf("%s:%d", c.keyPrefix, generation)
}

func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read stats generation: %w", err)
	}
	return generation, nil
}

func (c *RedisCache) Get(ctx context.Context, generation int64) (*Aggregate, error) {
	raw, err := c.client.Get(ctx, c.dataKey(generation)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached stats: %w", err)
	}
	var agg Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}
	return &agg, nil
}

func (c *RedisCache) Set(ctx context.Context, generation int64, agg Aggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, c.dataKey(generation), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached stats: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("bump stats generation: %w", err)
	}
	return nil
}
