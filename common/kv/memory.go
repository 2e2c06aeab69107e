package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/lyzr/adstudio/common/logger"
)

// MemoryStore is an in-process Store for local development and tests
type MemoryStore struct {
	data     map[string][]byte
	counters map[string]int64
	mu       sync.RWMutex

	locks   map[string]chan struct{}
	locksMu sync.Mutex

	opts LockOptions
	log  *logger.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(log *logger.Logger, opts LockOptions) *MemoryStore {
	return &MemoryStore{
		data:     make(map[string][]byte),
		counters: make(map[string]int64),
		locks:    make(map[string]chan struct{}),
		opts:     opts.normalized(),
		log:      log,
	}
}

// Get retrieves a copy of the stored value
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set stores a copy of value
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = stored
	return nil
}

// Delete removes values and counters; missing keys are ignored
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
		delete(s.counters, key)
	}
	return nil
}

// Incr atomically increments a counter and returns the new value
func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key]++
	return s.counters[key], nil
}

// Lock blocks until the named lock is free, ctx ends, or the wait budget runs out
func (s *MemoryStore) Lock(ctx context.Context, key string) (Unlocker, error) {
	s.locksMu.Lock()
	ch, exists := s.locks[key]
	if !exists {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	s.locksMu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.Wait)
	defer cancel()

	select {
	case ch <- struct{}{}:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}

// Close drops all data
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)
	s.counters = make(map[string]int64)
	if s.log != nil {
		s.log.Info("memory store closed")
	}
	return nil
}

// Len returns the number of stored values (counters excluded)
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
