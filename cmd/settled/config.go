package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/xraph/settle/store/backend"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Addr          string        `env:"SETTLE_ADDR" envDefault:":8080"`
	LogLevel      string        `env:"SETTLE_LOG_LEVEL" envDefault:"info"`
	Store         string        `env:"SETTLE_STORE" envDefault:"memory"`
	DSN           string        `env:"SETTLE_DSN"`
	Database      string        `env:"SETTLE_DATABASE" envDefault:"settle"`
	Genesis       string        `env:"SETTLE_GENESIS"`
	KafkaBrokers  []string      `env:"SETTLE_KAFKA_BROKERS" envSeparator:","`
	KafkaPrefix   string        `env:"SETTLE_KAFKA_PREFIX" envDefault:"settle"`
	Epoch         time.Time     `env:"SETTLE_EPOCH" envDefault:"2024-01-01T00:00:00Z"`
	CloseInterval time.Duration `env:"SETTLE_CLOSE_INTERVAL" envDefault:"5s"`
	PluginTimeout time.Duration `env:"SETTLE_PLUGIN_TIMEOUT" envDefault:"5s"`
	Audit         bool          `env:"SETTLE_AUDIT" envDefault:"true"`
	ShutdownGrace time.Duration `env:"SETTLE_SHUTDOWN_GRACE" envDefault:"10s"`
}

// loadConfig reads an optional .env file, then the environment.
func loadConfig() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.CloseInterval <= 0 {
		return Config{}, fmt.Errorf("SETTLE_CLOSE_INTERVAL must be positive, got %s", cfg.CloseInterval)
	}
	return cfg, nil
}

func (c Config) backend() backend.Config {
	return backend.Config{Driver: c.Store, DSN: c.DSN, Database: c.Database}
}
