// Package cache wraps Redis for the small amount of shared state the service
// keeps outside the database: revoked refresh tokens and login attempt counters.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duynhne/profile-service/config"
)

// Cache namespaces every key as "<namespace>:<key>".
type Cache struct {
	client redis.UniversalClient // works with both single and cluster
}

// New connects to the Redis described by cfg and pings it.
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled() {
		return nil, errors.New("REDIS_ADDRS is empty")
	}

	var rdb redis.UniversalClient
	if cfg.Cluster && len(cfg.Addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Addrs[0],
			Password: cfg.Password,
			DB:       0,
		})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func key(namespace, k string) string {
	return namespace + ":" + k
}

// Set stores value under namespace:k for ttl.
func (c *Cache) Set(ctx context.Context, namespace, k string, value any, ttl time.Duration) error {
	return c.client.Set(ctx, key(namespace, k), value, ttl).Err()
}

// SetNX stores value only when the key does not exist yet and reports whether it did.
func (c *Cache) SetNX(ctx context.Context, namespace, k string, value any, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key(namespace, k), value, ttl).Result()
}

// Exists reports whether namespace:k is present.
func (c *Cache) Exists(ctx context.Context, namespace, k string) (bool, error) {
	n, err := c.client.Exists(ctx, key(namespace, k)).Result()
	return n > 0, err
}

// TTL returns the remaining lifetime of namespace:k.
func (c *Cache) TTL(ctx context.Context, namespace, k string) (time.Duration, error) {
	return c.client.TTL(ctx, key(namespace, k)).Result()
}

// IncrWithExpire increments a counter and starts its window on the first hit.
func (c *Cache) IncrWithExpire(ctx context.Context, namespace, k string, window time.Duration) (int64, error) {
	countKey := key(namespace, k)

	cnt, err := c.client.Incr(ctx, countKey).Result()
	if err != nil {
		return 0, err
	}

	if cnt == 1 {
		_ = c.client.Expire(ctx, countKey, window).Err()
	}

	return cnt, nil
}

// Ping checks connectivity, used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
