// ABOUTME: Redis client wrapper with a key prefix shared by locks and scan events
// ABOUTME: Verifies connectivity at construction with PING

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis client configuration.
type Config struct {
	// Addr is host:port.
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key, e.g. "bytescan:".
	Prefix string

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Client wraps a go-redis client with prefix support.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg.setDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb, prefix: cfg.Prefix}, nil
}

// PrefixedKey applies the configured prefix.
func (c *Client) PrefixedKey(key string) string {
	return c.prefix + key
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("closing redis client: %w", err)
	}
	return nil
}
