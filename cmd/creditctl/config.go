package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xraph/credits/pricing"
)

// Config is the creditctl TOML file.
//
//	[server]
//	addr = ":8080"
//
//	[engine]
//	default_balance = 3
//	pricing_cache_ttl = "30s"
//
//	[[pricing]]
//	kind = "research"
//	credits_cost = 1
//
//	[[accounts]]
//	user_id = "qa"
//	test_account = true
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Engine   EngineConfig    `toml:"engine"`
	Pricing  []PricingConfig `toml:"pricing"`
	Accounts []AccountConfig `toml:"accounts"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	Metrics         bool          `toml:"metrics"`
}

type EngineConfig struct {
	DefaultBalance  int64         `toml:"default_balance"`
	PricingCacheTTL time.Duration `toml:"pricing_cache_ttl"`
	PluginTimeout   time.Duration `toml:"plugin_timeout"`
}

type PricingConfig struct {
	Kind        string `toml:"kind"`
	CreditsCost int64  `toml:"credits_cost"`
	Inactive    bool   `toml:"inactive"`
	Description string `toml:"description"`
}

// AccountConfig opens an account at startup.
type AccountConfig struct {
	UserID      string `toml:"user_id"`
	Credits     int64  `toml:"credits"`
	TestAccount bool   `toml:"test_account"`
}

// DefaultConfig returns the config used without a file.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
			Metrics:         true,
		},
		Engine: EngineConfig{
			PricingCacheTTL: 30 * time.Second,
			PluginTimeout:   5 * time.Second,
		},
	}
}

// LoadConfig decodes path over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid entry.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Pricing))
	for i, p := range c.Pricing {
		if err := p.entry().Validate(); err != nil {
			return fmt.Errorf("pricing[%d]: %w", i, err)
		}
		if seen[p.Kind] {
			return fmt.Errorf("pricing[%d]: duplicate kind %q", i, p.Kind)
		}
		seen[p.Kind] = true
	}
	for i, a := range c.Accounts {
		if a.UserID == "" {
			return fmt.Errorf("accounts[%d]: user_id is required", i)
		}
		if a.Credits < 0 {
			return fmt.Errorf("accounts[%d]: credits must not be negative", i)
		}
	}
	return nil
}

// PricingEntries converts the [[pricing]] tables. Empty means the stock list.
func (c *Config) PricingEntries() []*pricing.Entry {
	entries := make([]*pricing.Entry, 0, len(c.Pricing))
	for _, p := range c.Pricing {
		entries = append(entries, p.entry())
	}
	return entries
}

func (p PricingConfig) entry() *pricing.Entry {
	return &pricing.Entry{
		Kind:        p.Kind,
		CreditsCost: p.CreditsCost,
		IsActive:    !p.Inactive,
		Description: p.Description,
	}
}
