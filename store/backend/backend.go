// Package backend opens a store.Store from a driver name and a DSN, for
// binaries and extensions that select their backend from configuration.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/store/mongo"
	"github.com/xraph/settle/store/postgres"
	"github.com/xraph/settle/store/redis"
	"github.com/xraph/settle/store/sqlite"
)

// Driver names.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Mongo    = "mongo"
	Redis    = "redis"
)

// DefaultDatabase is the Mongo database used when Config.Database is empty.
const DefaultDatabase = "settle"

// Config selects a backend.
type Config struct {
	// Driver is one of memory, sqlite, postgres, mongo or redis. Empty means
	// memory.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`
	// DSN is the file path (sqlite) or connection URL of the backend.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`
	// Database is the Mongo database name.
	Database string `json:"database" mapstructure:"database" yaml:"database"`
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = Memory
	}
	if driver != Memory && cfg.DSN == "" {
		return nil, settle.Invalid("dsn", "required for driver "+driver)
	}

	var (
		s   store.Store
		err error
	)
	switch driver {
	case Memory:
		return memory.New(), nil
	case SQLite:
		s, err = sqlite.Open(cfg.DSN)
	case Postgres, "pg", "postgresql":
		s, err = postgres.Open(ctx, cfg.DSN)
	case Mongo, "mongodb":
		db := cfg.Database
		if db == "" {
			db = DefaultDatabase
		}
		s, err = mongo.Open(cfg.DSN, db)
	case Redis:
		s, err = redis.Open(cfg.DSN)
	default:
		return nil, settle.Invalid("driver", fmt.Sprintf("unknown store driver %q", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
