package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/signaldesk/pkg/config"
)

// Connection bounds. Status pushes and cached reads are small, so a slow
// Redis should fail fast rather than stall a gateway request.
const (
	dialTimeout = 3 * time.Second
	ioTimeout   = 2 * time.Second
	pingTimeout = 5 * time.Second
)

// Client holds the gateway's Redis connection. A disabled client is valid:
// Enabled reports false and callers fall back to in-process state.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb  *redis.Client
	addr string
}

// New connects to Redis when REDIS_ENABLED is set and verifies the
// connection with a ping bounded by ctx and pingTimeout.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{}, nil
	}

	addr := net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", addr, err)
	}

	return &Client{rdb: rdb, addr: addr}, nil
}

// Close releases the connection pool. No-op when disabled.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Enabled reports whether a live connection backs this client
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Addr returns host:port, empty when disabled
func (c *Client) Addr() string {
	return c.addr
}

// Redis returns the underlying client (nil when disabled)
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
