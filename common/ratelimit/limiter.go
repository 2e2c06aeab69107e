package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Result contains the result of a rate limit check
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the window resets (0 if allowed)
}

// RateLimiter is a fixed-window limiter backed by Redis and a Lua script
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	prefix string
	logger Logger
}

// NewRateLimiter creates a new rate limiter with embedded Lua script
func NewRateLimiter(redisClient *redis.Client, prefix string, logger Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		prefix: prefix,
		logger: logger,
	}
}

// WriteKey is the counter for writes by one author to one ad
func WriteKey(adID, actor string) string {
	return fmt.Sprintf("rate_limit:ad:%s:%s", adID, actor)
}

// Check counts one request against key and reports whether it fits the window
func (r *RateLimiter) Check(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	key = r.prefix + key

	// Run Lua script atomically
	raw, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// {allowed, current_count, limit, retry_after}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}
	ints := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result element %d: %T", i, v)
		}
		ints[i] = n
	}

	result := &Result{
		Allowed:           ints[0] == 1,
		CurrentCount:      ints[1],
		Limit:             ints[2],
		RetryAfterSeconds: ints[3],
	}

	if !result.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", result.CurrentCount,
			"limit", limit,
			"retry_after", result.RetryAfterSeconds)
	} else {
		r.logger.Debug("rate limit check passed",
			"key", key,
			"current", result.CurrentCount,
			"limit", limit)
	}

	return result, nil
}

// GetCurrentCount returns current count without incrementing
func (r *RateLimiter) GetCurrentCount(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Get(ctx, r.prefix+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// ResetLimit clears a rate limit counter
func (r *RateLimiter) ResetLimit(ctx context.Context, key string) error {
	return r.redis.Del(ctx, r.prefix+key).Err()
}
