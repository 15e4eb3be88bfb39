package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/credits"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store"
)

// Option configures the credits Forge extension.
type Option func(*Extension)

// WithStore sets the store for the credits engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from db using Config.Driver.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithEngineOption passes a credits.Option through to the underlying engine.
func WithEngineOption(opt credits.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a credits plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, credits.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for credits routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithDriver selects the grove-backed store.
func WithDriver(driver string) Option {
	return func(e *Extension) { e.config.Driver = driver }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithPricingCacheTTL sets the price lookup cache duration.
func WithPricingCacheTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.PricingCacheTTL = d }
}

// WithDefaultBalance sets the credits granted to new accounts.
func WithDefaultBalance(n int64) Option {
	return func(e *Extension) { e.config.DefaultBalance = n }
}

// WithSeedPricing writes the stock price list on start.
func WithSeedPricing() Option {
	return func(e *Extension) { e.config.SeedPricing = true }
}
