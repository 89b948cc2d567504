// Package redis holds the optional Redis connection used to serialize identity runs
// across processes.
package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "heather:"

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	// KeyPrefix namespaces every key this service writes. Defaults to "heather:".
	KeyPrefix string
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Client struct {
	rdb    *redis.Client
	prefix string
	logger ectologger.Logger
}

// NewClient dials the server and fails unless it answers a PING before ctx ends.
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.addr(), err)
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"addr":       cfg.addr(),
		"db":         cfg.DB,
		"key_prefix": prefix,
	}).Info("Connected to redis")

	return &Client{rdb: rdb, prefix: prefix, logger: logger}, nil
}

// key namespaces parts under the client prefix: key("lock", "rp00042") is "heather:lock:rp00042".
func (c *Client) key(parts ...string) string {
	k := c.prefix
	for i, part := range parts {
		if i > 0 {
			k += ":"
		}
		k += part
	}
	return k
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
