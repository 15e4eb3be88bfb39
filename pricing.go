package credits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/types"
)

type cachedPrice struct {
	entry     pricing.Entry
	expiresAt time.Time
}

// priceCache is the in-process price lookup cache.
type priceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedPrice
}

func newPriceCache(ttl time.Duration) *priceCache {
	return &priceCache{ttl: ttl, entries: make(map[string]cachedPrice)}
}

func (c *priceCache) get(kind string, now time.Time) (*pricing.Entry, error) {
	if c.ttl <= 0 {
		return nil, ErrCacheMiss
	}
	c.mu.RLock()
	cp, ok := c.entries[kind]
	c.mu.RUnlock()
	if !ok || !now.Before(cp.expiresAt) {
		return nil, ErrCacheMiss
	}
	entry := cp.entry
	return &entry, nil
}

func (c *priceCache) put(e *pricing.Entry, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[e.Kind] = cachedPrice{entry: *e, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
}

func (c *priceCache) invalidate(kind string) {
	c.mu.Lock()
	delete(c.entries, kind)
	c.mu.Unlock()
}

// Cost returns the active price of an operation kind.
func (e *Engine) Cost(ctx context.Context, kind string) (int64, error) {
	return e.resolveCost(ctx, kind, 0)
}

// resolveCost applies the override when positive, otherwise looks up kind.
func (e *Engine) resolveCost(ctx context.Context, kind string, override int64) (int64, error) {
	if override < 0 {
		return 0, ValidationError{Field: "cost", Message: "must not be negative"}
	}
	if override > 0 {
		return override, nil
	}
	if kind == "" {
		return 0, ValidationError{Field: "operation_kind", Message: "is required without an explicit cost"}
	}

	now := e.now()
	entry, err := e.prices.get(kind, now)
	if err != nil {
		entry, err = e.store.GetPricing(ctx, kind)
		if err != nil {
			return 0, storeErr("get pricing", err)
		}
		e.prices.put(entry, now)
	}

	if !entry.IsActive {
		return 0, fmt.Errorf("%w: %s is inactive", ErrPricingNotFound, kind)
	}
	return entry.CreditsCost, nil
}

// SetPricing creates or replaces a price list entry.
func (e *Engine) SetPricing(ctx context.Context, entry *pricing.Entry) error {
	if err := entry.Validate(); err != nil {
		return ValidationError{Field: "pricing", Message: err.Error()}
	}

	now := e.now()
	if entry.CreatedAt.IsZero() {
		entry.Entity = types.NewEntity(now)
	} else {
		entry.Touch(now)
	}

	if err := e.store.UpsertPricing(ctx, entry); err != nil {
		return storeErr("upsert pricing", err)
	}
	e.prices.invalidate(entry.Kind)

	e.plugins.EmitPricingChanged(ctx, entry)
	return nil
}

// SeedPricing writes entries, or the stock price list when entries is empty.
func (e *Engine) SeedPricing(ctx context.Context, entries []*pricing.Entry) error {
	if len(entries) == 0 {
		entries = pricing.Defaults(e.now())
	}
	var errs MultiError
	for _, entry := range entries {
		errs.Add(e.SetPricing(ctx, entry))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ListPricing returns the price list.
func (e *Engine) ListPricing(ctx context.Context, activeOnly bool) ([]*pricing.Entry, error) {
	entries, err := e.store.ListPricing(ctx, pricing.ListOpts{ActiveOnly: activeOnly})
	if err != nil {
		return nil, storeErr("list pricing", err)
	}
	return entries, nil
}
