package credits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/types"
)

// Engine is the credit ledger and billing engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   types.Clock

	prices *priceCache

	// Configuration
	pricingCacheTTL time.Duration
	defaultBalance  int64
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		clock:           types.SystemClock,
		pricingCacheTTL: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.prices = newPriceCache(e.pricingCacheTTL)

	return e
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Start migrates the store and initialises plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("credits engine started",
		"pricing_cache_ttl", e.pricingCacheTTL,
		"default_balance", e.defaultBalance,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop notifies plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

func (e *Engine) now() time.Time { return e.clock().UTC() }

// storeErr passes engine sentinels through and wraps anything else as
// ErrStoreFailure.
func storeErr(op string, err error) error {
	for _, known := range []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrPricingNotFound,
		ErrAccountNotFound, ErrInsufficientCredits, ErrAlreadyDebited, ErrAlreadyCredited,
		ErrOperationNotFound, ErrOperationNotOwned, ErrInvalidState, ErrStoreFailure, ErrStoreClosed,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return StoreError(op, err)
}
