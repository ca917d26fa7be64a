// Package redisclient wraps go-redis with the error-degrading read/write
// surface the harness uses for session state.
//
// Read-path failures degrade to zero values and are logged rather than
// returned: callers treat Redis as a best-effort cache, not a source of
// truth. Write helpers report success as a bool for the same reason.
package redisclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultURL is used when neither the url argument nor REDIS_URL is set.
const DefaultURL = "redis://localhost:6379/0"

// Client wraps a redis.Client with logging and degraded error handling.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New connects to Redis and verifies the connection with a ping.
// URL resolution order: the url argument, the REDIS_URL environment
// variable, DefaultURL.
func New(ctx context.Context, url string, opts ...Option) (*Client, error) {
	if url == "" {
		url = os.Getenv("REDIS_URL")
	}
	if url == "" {
		url = DefaultURL
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := &Client{
		rdb:    redis.NewClient(opt),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", opt.Addr, err)
	}
	c.logger.Info("redis connection established", "addr", opt.Addr)
	return c, nil
}

// Raw exposes the underlying go-redis client for operations the wrapper
// does not cover.
func (c *Client) Raw() *redis.Client { return c.rdb }

// Get returns the value for key. Missing keys and errors both report
// ok=false; errors are additionally logged.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Error("redis GET failed", "key", key, "err", err)
		return "", false
	}
	return val, true
}

// Set stores a key-value pair. A zero ttl means no expiration.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Error("redis SET failed", "key", key, "err", err)
		return false
	}
	return true
}

// SetNX stores a key-value pair only if the key does not exist.
// Returns true when the value was set.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) bool {
	set, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		c.logger.Error("redis SETNX failed", "key", key, "err", err)
		return false
	}
	return set
}

// Delete removes one or more keys. Returns the number deleted.
func (c *Client) Delete(ctx context.Context, keys ...string) int64 {
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Error("redis DEL failed", "keys", keys, "err", err)
		return 0
	}
	return n
}

// Exists returns how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) int64 {
	n, err := c.rdb.Exists(ctx, keys...).Result()
	if err != nil {
		c.logger.Error("redis EXISTS failed", "keys", keys, "err", err)
		return 0
	}
	return n
}

// Expire sets an expiration on a key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := c.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		c.logger.Error("redis EXPIRE failed", "key", key, "err", err)
		return false
	}
	return ok
}

// TTL returns the time-to-live for a key: -1 when the key has no
// expiration, -2 when it does not exist (or on error).
func (c *Client) TTL(ctx context.Context, key string) time.Duration {
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		c.logger.Error("redis TTL failed", "key", key, "err", err)
		return -2
	}
	return d
}

// Incr increments a key by amount and returns the new value.
func (c *Client) Incr(ctx context.Context, key string, amount int64) (int64, bool) {
	n, err := c.rdb.IncrBy(ctx, key, amount).Result()
	if err != nil {
		c.logger.Error("redis INCR failed", "key", key, "err", err)
		return 0, false
	}
	return n, true
}

// Decr decrements a key by amount and returns the new value.
func (c *Client) Decr(ctx context.Context, key string, amount int64) (int64, bool) {
	n, err := c.rdb.DecrBy(ctx, key, amount).Result()
	if err != nil {
		c.logger.Error("redis DECR failed", "key", key, "err", err)
		return 0, false
	}
	return n, true
}

// Keys returns keys matching pattern. Use with caution on large datasets.
func (c *Client) Keys(ctx context.Context, pattern string) []string {
	keys, err := c.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		c.logger.Error("redis KEYS failed", "pattern", pattern, "err", err)
		return nil
	}
	return keys
}

// FlushDB clears the current database. Use with extreme caution.
func (c *Client) FlushDB(ctx context.Context) bool {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		c.logger.Error("redis FLUSHDB failed", "err", err)
		return false
	}
	return true
}

// Ping tests the connection.
func (c *Client) Ping(ctx context.Context) bool {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Error("redis PING failed", "err", err)
		return false
	}
	return true
}

// Pipeline runs fn against a pipeline and executes it. Pipeline errors
// propagate to the caller, unlike the degraded single-command helpers.
func (c *Client) Pipeline(ctx context.Context, fn func(redis.Pipeliner) error) error {
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(pipe)
	})
	if err != nil {
		c.logger.Error("redis pipeline failed", "err", err)
	}
	return err
}

// Close releases the connection pool.
func (c *Client) Close() error {
	err := c.rdb.Close()
	if err != nil {
		c.logger.Error("redis close failed", "err", err)
		return err
	}
	c.logger.Info("redis connection closed")
	return nil
}
