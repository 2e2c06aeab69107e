package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by Get when the key does not exist
var ErrKeyNotFound = errors.New("key not found")

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Client wraps redis.Client with logged, wrapped errors for the commands the stores use
type Client struct {
	redis  *redis.Client
	logger Logger
}

// NewClient creates a new Redis client wrapper
func NewClient(redisClient *redis.Client, logger Logger) *Client {
	return &Client{
		redis:  redisClient,
		logger: logger,
	}
}

// GetUnderlying returns the underlying redis.Client for scripts run by other packages
func (c *Client) GetUnderlying() *redis.Client {
	return c.redis
}

// failed logs a command failure and wraps it with the command and key
func (c *Client) failed(cmd string, key interface{}, err error) error {
	c.logger.Error("redis command failed", "cmd", cmd, "key", key, "error", err)
	return fmt.Errorf("redis %s %v: %w", cmd, key, err)
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get returns the value of key, or ErrKeyNotFound
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case err != nil:
		return nil, c.failed("GET", key, err)
	}
	return val, nil
}

// Set writes key; a zero expiry keeps it forever
func (c *Client) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if err := c.redis.Set(ctx, key, value, expiry).Err(); err != nil {
		return c.failed("SET", key, err)
	}
	return nil
}

// SetNX writes key only if absent and reports whether it did
func (c *Client) SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error) {
	ok, err := c.redis.SetNX(ctx, key, value, expiry).Result()
	if err != nil {
		return false, c.failed("SETNX", key, err)
	}
	return ok, nil
}

// Delete removes keys; missing keys are ignored
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return c.failed("DEL", keys, err)
	}
	return nil
}

// Increment bumps a counter and returns the new value; a missing counter starts at 1
func (c *Client) Increment(ctx context.Context, key string) (int64, error) {
	n, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, c.failed("INCR", key, err)
	}
	return n, nil
}

// RunScript executes a Lua script (EVALSHA with EVAL fallback); a nil reply is not an error
func (c *Client) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	res, err := script.Run(ctx, c.redis, keys, args...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, c.failed("EVALSHA", keys, err)
	}
	return res, nil
}

// Close closes the underlying client
func (c *Client) Close() error {
	return c.redis.Close()
}
