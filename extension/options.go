package extension

import (
	"time"

	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/store"
)

// Option configures the Settle Forge extension.
type Option func(*Extension)

// WithStore sets the store, bypassing Config.Store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRuntimeOption passes a runtime.Option through to the underlying runtime.
func WithRuntimeOption(opt runtime.Option) Option {
	return func(e *Extension) {
		e.runtimeOpts = append(e.runtimeOpts, opt)
	}
}

// WithPlugin registers a settle plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP API registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for settle routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGenesis sets the manifest applied on start.
func WithGenesis(path string) Option {
	return func(e *Extension) { e.config.Genesis = path }
}

// WithCloseInterval sets how often the ledger sequence advances.
func WithCloseInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.CloseInterval = d }
}

// WithKafka enables event publishing to brokers.
func WithKafka(brokers ...string) Option {
	return func(e *Extension) { e.config.KafkaBrokers = brokers }
}

// WithMetrics registers the Prometheus metrics plugin.
func WithMetrics() Option {
	return func(e *Extension) { e.config.Metrics = true }
}
