// Package kv is the key-value contract behind version storage and mixer state:
// opaque blobs with get/set/delete, an atomic counter, and a named mutual-exclusion lock.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get for a missing key
	ErrNotFound = errors.New("kv: key not found")

	// ErrLockTimeout is returned when a lock could not be acquired in time
	ErrLockTimeout = errors.New("kv: lock wait timed out")
)

// Unlocker releases a lock obtained from Store.Lock
type Unlocker func(ctx context.Context) error

// Store is the persistence contract used by repositories
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	Lock(ctx context.Context, key string) (Unlocker, error)
	Close() error
}

// LockOptions controls lock lease and wait budget
type LockOptions struct {
	// TTL bounds how long a crashed holder can keep a distributed lock
	TTL time.Duration
	// Wait bounds how long Lock blocks before returning ErrLockTimeout
	Wait time.Duration
}

// DefaultLockOptions mirrors the config defaults
func DefaultLockOptions() LockOptions {
	return LockOptions{TTL: 10 * time.Second, Wait: 5 * time.Second}
}

func (o LockOptions) normalized() LockOptions {
	def := DefaultLockOptions()
	if o.TTL <= 0 {
		o.TTL = def.TTL
	}
	if o.Wait <= 0 {
		o.Wait = def.Wait
	}
	return o
}
