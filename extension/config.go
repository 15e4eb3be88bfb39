package extension

import "time"

// Store drivers understood by Config.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for credits routes (default: "/credits").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Driver selects the store built around the grove.DB passed with
	// WithGroveDB. Ignored when WithStore is used (default: "memory").
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// PricingCacheTTL controls how long price lookups are cached in-process
	// (default: 30s). Other instances see price changes only after it
	// expires. A negative value disables the cache.
	PricingCacheTTL time.Duration `json:"pricing_cache_ttl" mapstructure:"pricing_cache_ttl" yaml:"pricing_cache_ttl"`

	// DefaultBalance is granted to every newly opened account.
	DefaultBalance int64 `json:"default_balance" mapstructure:"default_balance" yaml:"default_balance"`

	// SeedPricing writes the stock price list on start.
	SeedPricing bool `json:"seed_pricing" mapstructure:"seed_pricing" yaml:"seed_pricing"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:        "/credits",
		Driver:          DriverMemory,
		PricingCacheTTL: 30 * time.Second,
	}
}
