// Package extension provides the Forge extension adapter for the credits
// engine.
//
// It implements the forge.Extension interface to integrate credits
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.credits" or "credits" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/credits"
	"github.com/xraph/credits/api"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/store/mongo"
	"github.com/xraph/credits/store/postgres"
	"github.com/xraph/credits/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "credits"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Prepaid credit ledger and audit billing engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the credits engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *credits.Engine
	store      store.Store
	groveDB    *grove.DB
	engineOpts []credits.Option
}

// New creates a new credits Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *credits.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the credits engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.initEngine(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*credits.Engine, error) {
		return e.engine, nil
	})
}

// initEngine builds the store and engine from the resolved config.
func (e *Extension) initEngine() error {
	if e.store == nil {
		s, err := buildStore(e.config.Driver, e.groveDB)
		if err != nil {
			return err
		}
		e.store = s
	}

	e.engine = credits.New(e.store, e.buildEngineOpts()...)
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("credits: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if e.config.SeedPricing {
		if err := e.engine.SeedPricing(ctx, nil); err != nil {
			return fmt.Errorf("credits: seed pricing: %w", err)
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
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
		return errors.New("credits: store not initialized")
	}
	return e.store.Ping(ctx)
}

// Handler returns the credits HTTP API mounted under BasePath, or nil when
// routes are disabled or the extension is not registered.
func (e *Extension) Handler() http.Handler {
	if e.engine == nil || e.config.DisableRoutes {
		return nil
	}
	r := chi.NewRouter()
	r.Mount(e.config.BasePath, api.NewServer(e.engine).Handler())
	return r
}

// buildStore constructs the store for driver around db.
func buildStore(driver string, db *grove.DB) (store.Store, error) {
	if driver == "" || driver == DriverMemory {
		return memory.New(), nil
	}
	if db == nil {
		return nil, fmt.Errorf("credits: driver %q needs a grove database (see WithGroveDB)", driver)
	}
	switch driver {
	case DriverPostgres:
		return postgres.New(db), nil
	case DriverSQLite:
		return sqlite.New(db), nil
	case DriverMongo:
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("credits: unknown store driver %q", driver)
	}
}

// buildEngineOpts constructs credits.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []credits.Option {
	opts := make([]credits.Option, 0, len(e.engineOpts)+2)

	switch ttl := e.config.PricingCacheTTL; {
	case ttl > 0:
		opts = append(opts, credits.WithPricingCacheTTL(ttl))
	case ttl < 0:
		opts = append(opts, credits.WithPricingCacheTTL(0))
	}
	if e.config.DefaultBalance > 0 {
		opts = append(opts, credits.WithDefaultBalance(e.config.DefaultBalance))
	}

	// Pass-through options last so they win.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("credits: configuration is required but not found in config files; " +
				"ensure 'extensions.credits' or 'credits' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("credits: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("driver", e.config.Driver),
		forge.F("pricing_cache_ttl", e.config.PricingCacheTTL),
		forge.F("default_balance", e.config.DefaultBalance),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.credits", "credits"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("credits: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("credits: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.PricingCacheTTL == 0 {
		cfg.PricingCacheTTL = defaults.PricingCacheTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML wins for values; programmatic bool flags and non-zero values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.SeedPricing {
		yamlConfig.SeedPricing = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.PricingCacheTTL == 0 {
		yamlConfig.PricingCacheTTL = programmaticConfig.PricingCacheTTL
	}
	if yamlConfig.DefaultBalance == 0 {
		yamlConfig.DefaultBalance = programmaticConfig.DefaultBalance
	}

	return mergeWithDefaults(yamlConfig)
}
