package backend_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/backend"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/store/sqlite"
)

func TestOpenMemory(t *testing.T) {
	for _, driver := range []string{"", "memory", " Memory "} {
		s, err := backend.Open(context.Background(), backend.Config{Driver: driver})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, s)
		require.NoError(t, s.Close())
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := backend.Open(ctx, backend.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "settle.db"),
	})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &sqlite.Store{}, s)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Apply(ctx, []store.Op{store.Put("k", []byte("v"))}))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestOpenRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  backend.Config
	}{
		{"unknown driver", backend.Config{Driver: "cassandra", DSN: "x"}},
		{"sqlite without path", backend.Config{Driver: "sqlite"}},
		{"postgres without dsn", backend.Config{Driver: "postgres"}},
		{"mongo without uri", backend.Config{Driver: "mongo"}},
		{"redis without url", backend.Config{Driver: "redis"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backend.Open(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, settle.ErrInvalidInput)
		})
	}
}
