// Package redis provides a thin wrapper around go-redis/v9 used by the
// shared vocabulary backend: connection setup, hash reads and atomic
// server-side scripts.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/resilience"
)

// Script is a Lua script executed atomically on the server.
type Script = redis.Script

// NewScript compiles src once; Run sends EVALSHA and falls back to EVAL.
func NewScript(src string) *Script {
	return redis.NewScript(src)
}

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with PING,
// retrying while the server comes up.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	err := resilience.Retry(ctx, "redis-ping", resilience.StartupConfig(retryable), func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// retryable is false once the server has rejected our credentials or the
// selected database.
func retryable(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"NOAUTH", "WRONGPASS", "ERR DB index is out of range"} {
		if strings.HasPrefix(msg, prefix) {
			return false
		}
	}
	return true
}

// RunInt runs script with keys and args and returns its integer reply.
func (c *Client) RunInt(ctx context.Context, script *Script, keys []string, args ...any) (int64, error) {
	return script.Run(ctx, c.rdb, keys, args...).Int64()
}

// HGetAll returns every field of the hash at key.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
