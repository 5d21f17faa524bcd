// Package extension provides the Forge extension adapter for Settle.
//
// It implements the forge.Extension interface to integrate the Settle
// runtime into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.settle" or "settle" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/settle/api"
	"github.com/xraph/settle/clock"
	"github.com/xraph/settle/genesis"
	"github.com/xraph/settle/observability"
	"github.com/xraph/settle/publish/kafka"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/backend"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "settle"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Payment settlement and marketplace contracts"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Settle as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	rt          *runtime.Runtime
	store       store.Store
	runtimeOpts []runtime.Option

	server     *api.Server
	deployment *genesis.Deployment
	metrics    *observability.PrometheusFactory
}

// New creates a new Settle Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Runtime returns the underlying runtime.
// This is nil until Register is called.
func (e *Extension) Runtime() *runtime.Runtime { return e.rt }

// Deployment returns the contracts deployed from the genesis manifest, or
// nil when none is configured.
func (e *Extension) Deployment() *genesis.Deployment { return e.deployment }

// Handler returns the HTTP API mounted under the base path, or nil when
// routes are disabled.
func (e *Extension) Handler() http.Handler {
	if e.server == nil {
		return nil
	}
	return http.StripPrefix(strings.TrimSuffix(e.config.BasePath, "/"), e.server)
}

// MetricsHandler returns the Prometheus scrape handler, or nil when metrics
// are disabled.
func (e *Extension) MetricsHandler() http.Handler {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Handler()
}

// Register implements [forge.Extension]. It loads configuration, opens the
// store, builds the runtime and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := backend.Open(context.Background(), e.config.Store)
		if err != nil {
			return fmt.Errorf("settle: open store: %w", err)
		}
		e.store = s
	}

	e.rt = runtime.New(e.store, e.buildRuntimeOpts()...)

	if err := vessel.Provide(fapp.Container(), func() (*runtime.Runtime, error) {
		return e.rt, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}

	serverOpts := []api.Option{api.WithTimeout(e.config.RequestTimeout)}
	if e.config.Genesis != "" {
		// Filled in by Start once the manifest is applied.
		e.deployment = &genesis.Deployment{}
		serverOpts = append(serverOpts, api.WithDeployment(e.deployment))
	}
	e.server = api.New(e.rt, serverOpts...)

	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// Start implements [forge.Extension]. It starts the runtime and applies the
// genesis manifest.
func (e *Extension) Start(ctx context.Context) error {
	if e.rt == nil {
		return errors.New("settle: extension not initialized")
	}

	if err := e.rt.Start(ctx); err != nil {
		return err
	}

	if e.config.Genesis != "" {
		m, err := genesis.Load(e.config.Genesis)
		if err != nil {
			return err
		}
		dep, err := genesis.Apply(ctx, e.rt, m)
		if err != nil {
			return err
		}
		*e.deployment = *dep
		e.Logger().Debug("settle: genesis applied",
			forge.F("initialized", len(dep.Initialized)),
			forge.F("existing", len(dep.Existing)),
		)
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.rt != nil {
		if err := e.rt.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("settle: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildRuntimeOpts constructs runtime.Option values from the resolved config.
func (e *Extension) buildRuntimeOpts() []runtime.Option {
	opts := make([]runtime.Option, 0, len(e.runtimeOpts)+5)

	opts = append(opts,
		runtime.WithClock(clock.NewInterval(e.config.Epoch, e.config.CloseInterval)),
		runtime.WithPluginTimeout(e.config.PluginTimeout),
	)
	if e.config.DisableMigrate {
		opts = append(opts, runtime.WithoutMigrate())
	}
	if e.config.Metrics {
		e.metrics = observability.NewPrometheusFactory(prometheus.NewRegistry())
		opts = append(opts, runtime.WithPlugin(observability.NewMetricsExtension(e.metrics)))
	}
	if len(e.config.KafkaBrokers) > 0 {
		opts = append(opts, runtime.WithPlugin(kafka.New(e.config.KafkaBrokers, kafka.WithPrefix(e.config.KafkaPrefix))))
	}

	// Pass-through options apply last so they can override the above.
	opts = append(opts, e.runtimeOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("settle: configuration is required but not found in config files; " +
				"ensure 'extensions.settle' or 'settle' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("settle: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("store_driver", e.config.Store.Driver),
		forge.F("genesis", e.config.Genesis),
		forge.F("close_interval", e.config.CloseInterval),
		forge.F("kafka_brokers", len(e.config.KafkaBrokers)),
		forge.F("metrics", e.config.Metrics),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.settle", "settle"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("settle: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("settle: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.CloseInterval == 0 {
		cfg.CloseInterval = defaults.CloseInterval
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.KafkaPrefix == "" {
		cfg.KafkaPrefix = defaults.KafkaPrefix
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.Metrics {
		yamlConfig.Metrics = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Genesis == "" {
		yamlConfig.Genesis = programmaticConfig.Genesis
	}
	if yamlConfig.KafkaPrefix == "" {
		yamlConfig.KafkaPrefix = programmaticConfig.KafkaPrefix
	}
	if yamlConfig.Store.Driver == "" {
		yamlConfig.Store = programmaticConfig.Store
	}
	if len(yamlConfig.KafkaBrokers) == 0 {
		yamlConfig.KafkaBrokers = programmaticConfig.KafkaBrokers
	}
	if yamlConfig.Epoch.IsZero() {
		yamlConfig.Epoch = programmaticConfig.Epoch
	}

	// Durations: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.CloseInterval == 0 {
		yamlConfig.CloseInterval = programmaticConfig.CloseInterval
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	if yamlConfig.RequestTimeout == 0 {
		yamlConfig.RequestTimeout = programmaticConfig.RequestTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
