package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/adstudio/common/logger"
	rediscommon "github.com/lyzr/adstudio/common/redis"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it is still held by the caller's token
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

const lockRetryInterval = 25 * time.Millisecond

// RedisStore implements Store on top of Redis strings and counters
type RedisStore struct {
	client *rediscommon.Client
	prefix string
	opts   LockOptions
	log    *logger.Logger
}

// NewRedisStore creates a Redis-backed store; prefix namespaces every key
func NewRedisStore(client *rediscommon.Client, prefix string, opts LockOptions, log *logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		opts:   opts.normalized(),
		log:    log,
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get retrieves a value by key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key))
	if errors.Is(err, rediscommon.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value without expiry
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0)
}

// Delete removes keys
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}
	return s.client.Delete(ctx, prefixed...)
}

// Incr atomically increments a counter
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Increment(ctx, s.key(key))
}

// Lock acquires a lease-based lock with SET NX PX, polling until the wait budget ends
func (s *RedisStore) Lock(ctx context.Context, key string) (Unlocker, error) {
	lockKey := s.key(key)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.Wait)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := s.client.SetNX(waitCtx, lockKey, token, s.opts.TTL)
		if err != nil && waitCtx.Err() == nil {
			return nil, err
		}
		if acquired {
			break
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}

	return func(ctx context.Context) error {
		res, err := s.client.RunScript(ctx, releaseScript, []string{lockKey}, token)
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		if n, ok := res.(int64); ok && n == 0 {
			s.log.Warn("lock lease expired before release", "key", key)
		}
		return nil
	}, nil
}

// Close is a no-op; the Redis client belongs to whoever created it
func (s *RedisStore) Close() error {
	return nil
}
