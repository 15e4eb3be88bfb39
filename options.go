package credits

import (
	"log/slog"
	"time"

	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/types"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithPricingCacheTTL sets how long price lookups are cached. Zero disables
// the cache.
//
// SetPricing invalidates only the local cache. Another engine sharing the
// store keeps charging its cached price, and keeps accepting a deactivated
// kind, until its entry expires. Use zero when several instances share one
// store and price changes must apply at once.
func WithPricingCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.pricingCacheTTL = ttl
	}
}

// WithDefaultBalance sets the signup grant given by OpenAccount.
func WithDefaultBalance(credits int64) Option {
	return func(e *Engine) {
		e.defaultBalance = credits
	}
}

// WithClock overrides the time source.
func WithClock(clock types.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}
