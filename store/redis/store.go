// Package redis implements store.Store on Redis. Every key is namespaced
// under a prefix and batches are applied with WATCH and MULTI/EXEC.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
)

// DefaultPrefix namespaces state keys.
const DefaultPrefix = "settle:"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using a go-redis client.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// New wraps a client. An empty prefix selects DefaultPrefix.
func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Open parses a redis:// URL and connects.
func Open(url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("settle/redis: parse url: %w", err)
	}
	return New(goredis.NewClient(opts), ""), nil
}

// Migrate is a no-op; Redis needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, settle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("settle/redis: get %s: %w", key, err)
	}
	return value, nil
}

// Apply WATCHes the checked keys, validates them and writes with MULTI/EXEC.
// A checked key modified before EXEC fails the batch with a conflict.
func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}
	checks, writes := store.Split(ops)
	watched := make([]string, 0, len(checks))
	for _, op := range checks {
		watched = append(watched, s.prefix+op.Key)
	}

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		for _, op := range checks {
			value, err := tx.Get(ctx, s.prefix+op.Key).Bytes()
			if err != nil && !errors.Is(err, goredis.Nil) {
				return fmt.Errorf("check %s: %w", op.Key, err)
			}
			if !op.Holds(value, err == nil) {
				return fmt.Errorf("%w: %s", settle.ErrConflict, op.Key)
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, op := range writes {
				if op.Delete {
					pipe.Del(ctx, s.prefix+op.Key)
					continue
				}
				pipe.Set(ctx, s.prefix+op.Key, op.Value, 0)
			}
			return nil
		})
		return err
	}, watched...)
	if errors.Is(err, goredis.TxFailedErr) {
		err = fmt.Errorf("%w: watched key modified", settle.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("settle/redis: apply: %w", err)
	}
	return nil
}

// Ping checks server connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
