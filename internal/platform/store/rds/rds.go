// Package rds provides a small redis client for cache reads and writes
package rds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the redis client
type Config struct {
	Addr string
	DB   int
}

// RDS wraps a redis client behind the cache seam
type RDS struct {
	c *redis.Client
}

// Open connects and verifies the server responds
func Open(ctx context.Context, cfg Config) (*RDS, error) {
	c := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RDS{c: c}, nil
}

// Get returns the value and whether the key exists
// a missing key is not an error
func (r *RDS) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set writes a value with a TTL; ttl <= 0 means no expiry
func (r *RDS) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.c.Set(ctx, key, value, ttl).Err()
}

// Del removes keys, ignoring ones that do not exist
func (r *RDS) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

// Ping reports readiness
func (r *RDS) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

// Close releases the client
func (r *RDS) Close() error { return r.c.Close() }
