package extension

import (
	"time"

	"github.com/xraph/settle/store/backend"
)

// Config holds the Settle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.settle" or "settle" keys).
type Config struct {
	// DisableRoutes prevents the HTTP API from being built and registered.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for settle routes (default: "/settle").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Store selects the state backend. An empty driver means memory.
	Store backend.Config `json:"store" mapstructure:"store" yaml:"store"`

	// Genesis is the path of a deployment manifest applied on start.
	Genesis string `json:"genesis" mapstructure:"genesis" yaml:"genesis"`

	// Epoch is the wall time of ledger sequence 0.
	Epoch time.Time `json:"epoch" mapstructure:"epoch" yaml:"epoch"`

	// CloseInterval is how often the ledger sequence advances (default: 5s).
	CloseInterval time.Duration `json:"close_interval" mapstructure:"close_interval" yaml:"close_interval"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequestTimeout bounds each HTTP request (default: 30s).
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout" yaml:"request_timeout"`

	// KafkaBrokers enables event publishing when non-empty.
	KafkaBrokers []string `json:"kafka_brokers" mapstructure:"kafka_brokers" yaml:"kafka_brokers"`

	// KafkaPrefix is prepended to published topic names (default: "settle").
	KafkaPrefix string `json:"kafka_prefix" mapstructure:"kafka_prefix" yaml:"kafka_prefix"`

	// Metrics registers the Prometheus metrics plugin.
	Metrics bool `json:"metrics" mapstructure:"metrics" yaml:"metrics"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:       "/settle",
		CloseInterval:  5 * time.Second,
		PluginTimeout:  5 * time.Second,
		RequestTimeout: 30 * time.Second,
		KafkaPrefix:    "settle",
	}
}
