package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lyzr/adstudio/common/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_entry (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS kv_counter (
    key   TEXT PRIMARY KEY,
    value BIGINT NOT NULL
);
`

// PostgresStore implements Store on two tables; locks are session advisory locks
type PostgresStore struct {
	db     *db.DB
	prefix string
	opts   LockOptions
}

// NewPostgresStore creates a Postgres-backed store
func NewPostgresStore(database *db.DB, prefix string, opts LockOptions) *PostgresStore {
	return &PostgresStore{
		db:     database,
		prefix: prefix,
		opts:   opts.normalized(),
	}
}

// EnsureSchema creates the backing tables if needed
func EnsureSchema(ctx context.Context, database *db.DB) error {
	if _, err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create kv schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) key(k string) string {
	return s.prefix + k
}

// Get retrieves a value by key
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM kv_entry WHERE key = $1`, s.key(key)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set upserts a value
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entry (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, s.key(key), value); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes values and counters
func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}

	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kv_entry WHERE key = ANY($1)`, prefixed); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM kv_counter WHERE key = ANY($1)`, prefixed)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Incr atomically increments a counter
func (s *PostgresStore) Incr(ctx context.Context, key string) (int64, error) {
	query := `
		INSERT INTO kv_counter (key, value) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = kv_counter.value + 1
		RETURNING value
	`
	var value int64
	if err := s.db.QueryRow(ctx, query, s.key(key)).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to increment key %s: %w", key, err)
	}
	return value, nil
}

// Lock holds a pooled connection with a session advisory lock until released
func (s *PostgresStore) Lock(ctx context.Context, key string) (Unlocker, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.Wait)
	defer cancel()

	conn, err := s.db.Acquire(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock %s: %w", key, err)
	}

	lockKey := s.key(key)
	if _, err := conn.Exec(waitCtx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		conn.Release()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if waitCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		defer conn.Release()
		if _, err := conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, lockKey); err != nil {
			return fmt.Errorf("failed to unlock %s: %w", key, err)
		}
		return nil
	}, nil
}

// Close is a no-op; the pool is owned by bootstrap
func (s *PostgresStore) Close() error {
	return nil
}
