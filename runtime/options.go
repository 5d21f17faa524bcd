package runtime

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/settle/clock"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/types"
)

// Option configures a Runtime instance.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
		rt.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(rt *Runtime) {
		if err := rt.plugins.Register(p); err != nil {
			rt.logger.Warn("plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.plugins.WithTimeout(d)
	}
}

// WithClock sets the ledger-sequence source. The default is a manual clock
// at sequence 0.
func WithClock(c clock.Clock) Option {
	return func(rt *Runtime) {
		rt.clock = c
	}
}

// WithTracer sets the tracer used for invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(rt *Runtime) {
		rt.tracer = t
	}
}

// WithAsset registers an asset contract at address.
func WithAsset(address types.Address, c host.AssetContract) Option {
	return func(rt *Runtime) {
		if err := rt.RegisterAsset(address, c); err != nil {
			rt.logger.Warn("asset registration failed", "asset", address, "error", err)
		}
	}
}

// WithoutMigrate makes Start skip store migration, for stores whose schema
// is managed elsewhere.
func WithoutMigrate() Option {
	return func(rt *Runtime) {
		rt.migrate = false
	}
}

// WithCommitAttempts sets how many times an invocation runs before a commit
// conflict is returned. Values below 1 mean 1.
func WithCommitAttempts(n int) Option {
	return func(rt *Runtime) {
		rt.commitAttempts = max(n, 1)
	}
}
