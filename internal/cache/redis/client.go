// Package redis implements the shared-state adapters of the tontine server
// (summary cache, sessions, rate limiting, refresh locks and pub/sub) on top
// of go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes keys and channels when ClientConfig.Namespace
// is empty.
const DefaultNamespace = "tontine"

// Keyspace builds every key and channel name written by this package, so
// several deployments can share one Redis database.
//
//	{ns}:session:{id}
//	{ns}:dashboard:{userID}
//	{ns}:lock:{name}
//	{ns}:ratelimit:{client}
//	{ns}:{channel}             pub/sub
type Keyspace struct {
	ns string
}

// NewKeyspace returns the keyspace for namespace ns.
func NewKeyspace(ns string) Keyspace {
	ns = strings.Trim(strings.TrimSpace(ns), ":")
	if ns == "" {
		ns = DefaultNamespace
	}
	return Keyspace{ns: ns}
}

func (k Keyspace) key(kind, id string) string { return k.ns + ":" + kind + ":" + id }

func (k Keyspace) Session(id string) string       { return k.key("session", id) }
func (k Keyspace) Dashboard(userID string) string { return k.key("dashboard", userID) }
func (k Keyspace) Lock(name string) string        { return k.key("lock", name) }
func (k Keyspace) RateLimit(client string) string { return k.key("ratelimit", client) }

// Channel namespaces a pub/sub channel or pattern.
func (k Keyspace) Channel(name string) string { return k.ns + ":" + name }

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	Namespace  string
}

// Client is a connected go-redis client together with the keyspace the
// adapters built on it write to.
type Client struct {
	rdb  *redis.Client
	keys Keyspace
}

// New connects and pings the server, failing when it is unreachable.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, keys: NewKeyspace(cfg.Namespace)}, nil
}

// Ping satisfies the health probe of /api/status.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Keys returns the client's keyspace.
func (c *Client) Keys() Keyspace {
	return c.keys
}
