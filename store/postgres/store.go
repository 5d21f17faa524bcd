// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS settle_state (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// applyLockID is the advisory lock key serializing Apply across processes.
const applyLockID int64 = 0x736574746c65 // "settle"

// Store implements store.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open creates a pool from a connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: connect: %w", err)
	}
	return New(pool), nil
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the state table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("settle/postgres: migration failed: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settle_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, settle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: get %s: %w", key, err)
	}
	return value, nil
}

// Apply takes a transaction-scoped advisory lock shared by every settle
// writer on the database, validates the check ops and then writes.
func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	checks, writes := store.Split(ops)
	batch := &pgx.Batch{}
	for _, op := range writes {
		if op.Delete {
			batch.Queue(`DELETE FROM settle_state WHERE key = $1`, op.Key)
			continue
		}
		batch.Queue(`INSERT INTO settle_state (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			op.Key, op.Value)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, applyLockID); err != nil {
			return err
		}
		for _, op := range checks {
			var value []byte
			err := tx.QueryRow(ctx, `SELECT value FROM settle_state WHERE key = $1`, op.Key).Scan(&value)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("check %s: %w", op.Key, err)
			}
			if !op.Holds(value, err == nil) {
				return fmt.Errorf("%w: %s", settle.ErrConflict, op.Key)
			}
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("settle/postgres: apply: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
