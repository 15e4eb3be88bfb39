package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages registered plugins. Hook implementations are discovered
// once at registration and cached per hook.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onCreditsChecked      []OnCreditsChecked
	onInsufficientCredits []OnInsufficientCredits
	onCreditsDeducted     []OnCreditsDeducted
	onTrialRecorded       []OnTrialRecorded
	onCreditsGranted      []OnCreditsGranted
	onPricingChanged      []OnPricingChanged
	onSettlementCompleted []OnSettlementCompleted
	onSettlementSkipped   []OnSettlementSkipped
	onSettlementFailed    []OnSettlementFailed
	onFlagUpdateFailed    []OnFlagUpdateFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCreditsChecked); ok {
		r.onCreditsChecked = append(r.onCreditsChecked, v)
	}
	if v, ok := p.(OnInsufficientCredits); ok {
		r.onInsufficientCredits = append(r.onInsufficientCredits, v)
	}
	if v, ok := p.(OnCreditsDeducted); ok {
		r.onCreditsDeducted = append(r.onCreditsDeducted, v)
	}
	if v, ok := p.(OnTrialRecorded); ok {
		r.onTrialRecorded = append(r.onTrialRecorded, v)
	}
	if v, ok := p.(OnCreditsGranted); ok {
		r.onCreditsGranted = append(r.onCreditsGranted, v)
	}
	if v, ok := p.(OnPricingChanged); ok {
		r.onPricingChanged = append(r.onPricingChanged, v)
	}
	if v, ok := p.(OnSettlementCompleted); ok {
		r.onSettlementCompleted = append(r.onSettlementCompleted, v)
	}
	if v, ok := p.(OnSettlementSkipped); ok {
		r.onSettlementSkipped = append(r.onSettlementSkipped, v)
	}
	if v, ok := p.(OnSettlementFailed); ok {
		r.onSettlementFailed = append(r.onSettlementFailed, v)
	}
	if v, ok := p.(OnFlagUpdateFailed); ok {
		r.onFlagUpdateFailed = append(r.onFlagUpdateFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnCreditsChecked", reflect.TypeOf((*OnCreditsChecked)(nil)).Elem()},
	{"OnInsufficientCredits", reflect.TypeOf((*OnInsufficientCredits)(nil)).Elem()},
	{"OnCreditsDeducted", reflect.TypeOf((*OnCreditsDeducted)(nil)).Elem()},
	{"OnTrialRecorded", reflect.TypeOf((*OnTrialRecorded)(nil)).Elem()},
	{"OnCreditsGranted", reflect.TypeOf((*OnCreditsGranted)(nil)).Elem()},
	{"OnPricingChanged", reflect.TypeOf((*OnPricingChanged)(nil)).Elem()},
	{"OnSettlementCompleted", reflect.TypeOf((*OnSettlementCompleted)(nil)).Elem()},
	{"OnSettlementSkipped", reflect.TypeOf((*OnSettlementSkipped)(nil)).Elem()},
	{"OnSettlementFailed", reflect.TypeOf((*OnSettlementFailed)(nil)).Elem()},
	{"OnFlagUpdateFailed", reflect.TypeOf((*OnFlagUpdateFailed)(nil)).Elem()},
}

// implementedHooks lists the hook interfaces p satisfies, for logging.
func implementedHooks(p Plugin) []string {
	var hooks []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			hooks = append(hooks, h.name)
		}
	}
	return hooks
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnInit", p.Name(), func() error { return p.OnInit(ctx, engine) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnShutdown", p.Name(), func() error { return p.OnShutdown(ctx) })
	}
}

// EmitCreditsChecked notifies plugins of a guard decision.
func (r *Registry) EmitCreditsChecked(ctx context.Context, evt CheckEvent) {
	r.mu.RLock()
	plugins := r.onCreditsChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnCreditsChecked", p.Name(), func() error { return p.OnCreditsChecked(ctx, evt) })
	}
}

// EmitInsufficientCredits notifies plugins of a refused check or debit.
func (r *Registry) EmitInsufficientCredits(ctx context.Context, userID, operationKind string, required, current int64) {
	r.mu.RLock()
	plugins := r.onInsufficientCredits
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnInsufficientCredits", p.Name(), func() error {
			return p.OnInsufficientCredits(ctx, userID, operationKind, required, current)
		})
	}
}

// EmitCreditsDeducted notifies plugins of a committed debit.
func (r *Registry) EmitCreditsDeducted(ctx context.Context, txn *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onCreditsDeducted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnCreditsDeducted", p.Name(), func() error { return p.OnCreditsDeducted(ctx, txn) })
	}
}

// EmitTrialRecorded notifies plugins of a test-account entry.
func (r *Registry) EmitTrialRecorded(ctx context.Context, txn *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onTrialRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnTrialRecorded", p.Name(), func() error { return p.OnTrialRecorded(ctx, txn) })
	}
}

// EmitCreditsGranted notifies plugins of a committed credit.
func (r *Registry) EmitCreditsGranted(ctx context.Context, txn *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onCreditsGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnCreditsGranted", p.Name(), func() error { return p.OnCreditsGranted(ctx, txn) })
	}
}

// EmitPricingChanged notifies plugins of a price list write.
func (r *Registry) EmitPricingChanged(ctx context.Context, entry *pricing.Entry) {
	r.mu.RLock()
	plugins := r.onPricingChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnPricingChanged", p.Name(), func() error { return p.OnPricingChanged(ctx, entry) })
	}
}

// EmitSettlementCompleted notifies plugins that an operation was charged.
func (r *Registry) EmitSettlementCompleted(ctx context.Context, operationID string, txn *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onSettlementCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnSettlementCompleted", p.Name(), func() error {
			return p.OnSettlementCompleted(ctx, operationID, txn)
		})
	}
}

// EmitSettlementSkipped notifies plugins of a no-op settlement.
func (r *Registry) EmitSettlementSkipped(ctx context.Context, operationID, reason string) {
	r.mu.RLock()
	plugins := r.onSettlementSkipped
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnSettlementSkipped", p.Name(), func() error {
			return p.OnSettlementSkipped(ctx, operationID, reason)
		})
	}
}

// EmitSettlementFailed notifies plugins of a settlement that did not charge.
func (r *Registry) EmitSettlementFailed(ctx context.Context, operationID string, err error) {
	r.mu.RLock()
	plugins := r.onSettlementFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnSettlementFailed", p.Name(), func() error {
			return p.OnSettlementFailed(ctx, operationID, err)
		})
	}
}

// EmitFlagUpdateFailed notifies plugins of a charged but unmarked operation.
func (r *Registry) EmitFlagUpdateFailed(ctx context.Context, operationID string, err error) {
	r.mu.RLock()
	plugins := r.onFlagUpdateFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, "OnFlagUpdateFailed", p.Name(), func() error {
			return p.OnFlagUpdateFailed(ctx, operationID, err)
		})
	}
}

// call runs one hook under the registry timeout and logs failures.
// Plugins never fail the billing path.
func (r *Registry) call(ctx context.Context, hook, pluginName string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
