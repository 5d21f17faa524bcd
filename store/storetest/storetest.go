// Package storetest is a conformance suite run against every store.Store
// backend.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/xraph/settle"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/store"
)

// Suite exercises the store.Store contract. Factory must return a migrated
// store; the suite closes it after each test. Keys are prefixed per test so
// shared databases can be reused across runs.
type Suite struct {
	suite.Suite

	Factory func(t *testing.T) store.Store
	st      store.Store
	prefix  string
}

// Run runs the suite against the stores produced by factory.
func Run(t *testing.T, factory func(t *testing.T) store.Store) {
	suite.Run(t, &Suite{Factory: factory})
}

func (s *Suite) SetupTest() {
	s.st = s.Factory(s.T())
	s.prefix = id.NewKey().Hex() + "/"
}

func (s *Suite) TearDownTest() {
	if s.st != nil {
		_ = s.st.Close()
	}
}

func (s *Suite) key(k string) string { return s.prefix + k }

func (s *Suite) TestGetMissing() {
	_, err := s.st.Get(context.Background(), s.key("absent"))
	s.Require().ErrorIs(err, settle.ErrNotFound)
}

func (s *Suite) TestPutGet() {
	ctx := context.Background()
	s.Require().NoError(s.st.Apply(ctx, []store.Op{
		store.Put(s.key("a"), []byte("one")),
		store.Put(s.key("b"), []byte("two")),
	}))

	v, err := s.st.Get(ctx, s.key("a"))
	s.Require().NoError(err)
	s.Equal([]byte("one"), v)

	v, err = s.st.Get(ctx, s.key("b"))
	s.Require().NoError(err)
	s.Equal([]byte("two"), v)
}

func (s *Suite) TestOverwrite() {
	ctx := context.Background()
	s.Require().NoError(s.st.Apply(ctx, []store.Op{store.Put(s.key("k"), []byte("v1"))}))
	s.Require().NoError(s.st.Apply(ctx, []store.Op{store.Put(s.key("k"), []byte("v2"))}))

	v, err := s.st.Get(ctx, s.key("k"))
	s.Require().NoError(err)
	s.Equal([]byte("v2"), v)
}

func (s *Suite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.st.Apply(ctx, []store.Op{store.Put(s.key("k"), []byte("v"))}))
	s.Require().NoError(s.st.Apply(ctx, []store.Op{store.Del(s.key("k"))}))

	_, err := s.st.Get(ctx, s.key("k"))
	s.ErrorIs(err, settle.ErrNotFound)

	// Deleting an absent key is not an error.
	s.NoError(s.st.Apply(ctx, []store.Op{store.Del(s.key("never"))}))
}

func (s *Suite) TestBatchOrder() {
	ctx := context.Background()
	s.Require().NoError(s.st.Apply(ctx, []store.Op{
		store.Put(s.key("k"), []byte("first")),
		store.Del(s.key("k")),
		store.Put(s.key("k"), []byte("last")),
	}))

	v, err := s.st.Get(ctx, s.key("k"))
	s.Require().NoError(err)
	s.Equal([]byte("last"), v)
}

func (s *Suite) TestEmptyBatch() {
	s.NoError(s.st.Apply(context.Background(), nil))
}

func (s *Suite) TestPing() {
	s.NoError(s.st.Ping(context.Background()))
}

func (s *Suite) TestChecks() {
	ctx := context.Background()
	k := s.key("k")
	s.Require().NoError(s.st.Apply(ctx, []store.Op{store.ExpectAbsent(k), store.Put(k, []byte("v1"))}))
	s.Require().NoError(s.st.Apply(ctx, []store.Op{store.Expect(k, []byte("v1")), store.Put(k, []byte("v2"))}))

	err := s.st.Apply(ctx, []store.Op{store.Expect(k, []byte("v1")), store.Put(k, []byte("stale"))})
	s.Require().ErrorIs(err, settle.ErrConflict)

	err = s.st.Apply(ctx, []store.Op{
		store.Put(s.key("other"), []byte("x")),
		store.ExpectAbsent(k),
	})
	s.Require().ErrorIs(err, settle.ErrConflict)

	v, err := s.st.Get(ctx, k)
	s.Require().NoError(err)
	s.Equal([]byte("v2"), v)
	_, err = s.st.Get(ctx, s.key("other"))
	s.ErrorIs(err, settle.ErrNotFound, "a failed check discards the whole batch")
}

func (s *Suite) TestChecksOnly() {
	ctx := context.Background()
	s.NoError(s.st.Apply(ctx, []store.Op{store.ExpectAbsent(s.key("none"))}))

	_, err := s.st.Get(ctx, s.key("none"))
	s.ErrorIs(err, settle.ErrNotFound)
}
