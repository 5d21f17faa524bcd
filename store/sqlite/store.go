// Package sqlite implements store.Store on SQLite through the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS settle_state (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
)`

// Store implements store.Store using a single key/value table. Files opened
// with Open take the write lock when a batch begins, so checks and writes of
// one batch see no interleaved commit.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settle/sqlite: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("settle/sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("settle/sqlite: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the state table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("settle/sqlite: migration failed: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settle_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("settle/sqlite: get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Apply(ctx context.Context, ops []store.Op) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settle/sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	checks, writes := store.Split(ops)
	for _, op := range checks {
		var value []byte
		qerr := tx.QueryRowContext(ctx, `SELECT value FROM settle_state WHERE key = ?`, op.Key).Scan(&value)
		if qerr != nil && !errors.Is(qerr, sql.ErrNoRows) {
			return fmt.Errorf("settle/sqlite: check %s: %w", op.Key, qerr)
		}
		if !op.Holds(value, qerr == nil) {
			return fmt.Errorf("%w: %s", settle.ErrConflict, op.Key)
		}
	}

	for _, op := range writes {
		if op.Delete {
			_, err = tx.ExecContext(ctx, `DELETE FROM settle_state WHERE key = ?`, op.Key)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO settle_state (key, value) VALUES (?, ?)
				 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
				op.Key, op.Value)
		}
		if err != nil {
			return fmt.Errorf("settle/sqlite: apply %s: %w", op.Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("settle/sqlite: commit: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
