// Package store defines the persistence contract of the runtime: a flat
// key/value space whose writes are applied in atomic batches. Keys are
// produced by host.NewKey and values are opaque encoded records.
//
// Several runtimes may share one store. Each invocation sends the values it
// read as check ops ahead of its writes, and Apply validates them atomically
// with the writes, so a batch computed from stale state is rejected with
// settle.ErrConflict instead of overwriting a concurrent commit.
package store

import (
	"bytes"
	"context"
)

// Op is one entry of a batch. Put and Del write. A Check op writes nothing:
// it fails the whole batch unless Key still holds Value, or is still absent
// when Delete is set.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
	Check  bool
}

// Put returns a write op.
func Put(key string, value []byte) Op { return Op{Key: key, Value: value} }

// Del returns a delete op.
func Del(key string) Op { return Op{Key: key, Delete: true} }

// Expect returns a check that key still holds value.
func Expect(key string, value []byte) Op { return Op{Key: key, Value: value, Check: true} }

// ExpectAbsent returns a check that key is still absent.
func ExpectAbsent(key string) Op { return Op{Key: key, Delete: true, Check: true} }

// Holds reports whether a check op is satisfied by the committed state of
// its key.
func (o Op) Holds(value []byte, present bool) bool {
	if o.Delete {
		return !present
	}
	return present && bytes.Equal(o.Value, value)
}

// Split separates the check ops of a batch from its writes, keeping order.
func Split(ops []Op) (checks, writes []Op) {
	for _, op := range ops {
		if op.Check {
			checks = append(checks, op)
			continue
		}
		writes = append(writes, op)
	}
	return checks, writes
}

// Reader is the read half of a store. Get returns settle.ErrNotFound for an
// absent key.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store is the unified storage interface for runtime state.
type Store interface {
	Reader

	// Apply commits every op or none of them. A failed check fails the
	// batch with an error wrapping settle.ErrConflict.
	Apply(ctx context.Context, ops []Op) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
