// Package memory provides an in-process store.Store for tests and
// single-node development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store keeps state in a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, settle.ErrStoreClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, settle.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Apply(_ context.Context, ops []store.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return settle.ErrStoreClosed
	}
	checks, writes := store.Split(ops)
	for _, op := range checks {
		v, ok := s.data[op.Key]
		if !op.Holds(v, ok) {
			return fmt.Errorf("%w: %s", settle.ErrConflict, op.Key)
		}
	}
	for _, op := range writes {
		if op.Delete {
			delete(s.data, op.Key)
			continue
		}
		s.data[op.Key] = append([]byte(nil), op.Value...)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return settle.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
