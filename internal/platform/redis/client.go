package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dsrengine/internal/platform/config"
	"dsrengine/internal/platform/metrics"
)

// Client wraps the go-redis client with health checking and pool metrics.
type Client struct {
	*redis.Client
	metrics      *metrics.Metrics
	lastTimeouts uint32
}

// New creates a Redis client from cfg and pings it.
// Returns nil when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig, m *metrics.Metrics) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client, metrics: m}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats copies pool statistics into Prometheus. Call it periodically.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	c.metrics.RedisPoolTotalConns.Set(float64(stats.TotalConns))
	c.metrics.RedisPoolIdleConns.Set(float64(stats.IdleConns))
	if stats.Timeouts > c.lastTimeouts {
		c.metrics.RedisPoolTimeouts.Add(float64(stats.Timeouts - c.lastTimeouts))
	}
	c.lastTimeouts = stats.Timeouts
}
