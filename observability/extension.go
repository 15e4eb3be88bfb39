// Package observability provides a metrics extension for the credits engine
// that records billing event counts via a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/credits"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnCreditsChecked      = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientCredits = (*MetricsExtension)(nil)
	_ plugin.OnCreditsDeducted     = (*MetricsExtension)(nil)
	_ plugin.OnTrialRecorded       = (*MetricsExtension)(nil)
	_ plugin.OnCreditsGranted      = (*MetricsExtension)(nil)
	_ plugin.OnPricingChanged      = (*MetricsExtension)(nil)
	_ plugin.OnSettlementCompleted = (*MetricsExtension)(nil)
	_ plugin.OnSettlementSkipped   = (*MetricsExtension)(nil)
	_ plugin.OnSettlementFailed    = (*MetricsExtension)(nil)
	_ plugin.OnFlagUpdateFailed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide billing metrics.
// Register it as an engine plugin to track credit flow automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Guard metrics
	ChecksAllowed   Counter
	ChecksDenied    Counter
	ChecksErrored   Counter
	ChecksBypassed  Counter
	InsufficientHit Counter

	// Ledger metrics
	DebitsCommitted Counter
	CreditsSpent    Counter
	DebitAmount     Histogram
	TrialEntries    Counter
	GrantsCommitted Counter
	CreditsGranted  Counter

	// Pricing metrics
	PricingChanges Counter

	// Settlement metrics
	SettlementsCompleted Counter
	SettlementsSkipped   Counter
	SettlementsFailed    Counter
	FlagUpdateFailures   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ChecksAllowed:   factory.Counter("credits.checks.allowed"),
		ChecksDenied:    factory.Counter("credits.checks.denied"),
		ChecksErrored:   factory.Counter("credits.checks.errored"),
		ChecksBypassed:  factory.Counter("credits.checks.test_account"),
		InsufficientHit: factory.Counter("credits.insufficient"),

		DebitsCommitted: factory.Counter("credits.debits"),
		CreditsSpent:    factory.Counter("credits.spent"),
		DebitAmount:     factory.Histogram("credits.debit.amount"),
		TrialEntries:    factory.Counter("credits.trial.entries"),
		GrantsCommitted: factory.Counter("credits.grants"),
		CreditsGranted:  factory.Counter("credits.granted"),

		PricingChanges: factory.Counter("credits.pricing.changes"),

		SettlementsCompleted: factory.Counter("credits.settlement.completed"),
		SettlementsSkipped:   factory.Counter("credits.settlement.skipped"),
		SettlementsFailed:    factory.Counter("credits.settlement.failed"),
		FlagUpdateFailures:   factory.Counter("credits.settlement.flag_update_failed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Guard hooks
// ──────────────────────────────────────────────────

// OnCreditsChecked implements plugin.OnCreditsChecked.
func (m *MetricsExtension) OnCreditsChecked(_ context.Context, evt plugin.CheckEvent) error {
	switch {
	case evt.IsTestAccount:
		m.ChecksBypassed.Inc()
	case evt.CanProceed:
		m.ChecksAllowed.Inc()
	case evt.Err != nil && !errors.Is(evt.Err, credits.ErrInsufficientCredits):
		m.ChecksErrored.Inc()
	default:
		m.ChecksDenied.Inc()
	}
	return nil
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (m *MetricsExtension) OnInsufficientCredits(_ context.Context, _, _ string, _, _ int64) error {
	m.InsufficientHit.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsDeducted implements plugin.OnCreditsDeducted.
func (m *MetricsExtension) OnCreditsDeducted(_ context.Context, txn *transaction.Transaction) error {
	m.DebitsCommitted.Inc()
	m.CreditsSpent.Add(float64(-txn.Amount))
	m.DebitAmount.Observe(float64(-txn.Amount))
	return nil
}

// OnTrialRecorded implements plugin.OnTrialRecorded.
func (m *MetricsExtension) OnTrialRecorded(_ context.Context, _ *transaction.Transaction) error {
	m.TrialEntries.Inc()
	return nil
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (m *MetricsExtension) OnCreditsGranted(_ context.Context, txn *transaction.Transaction) error {
	m.GrantsCommitted.Inc()
	m.CreditsGranted.Add(float64(txn.Amount))
	return nil
}

// OnPricingChanged implements plugin.OnPricingChanged.
func (m *MetricsExtension) OnPricingChanged(_ context.Context, _ *pricing.Entry) error {
	m.PricingChanges.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementCompleted implements plugin.OnSettlementCompleted.
func (m *MetricsExtension) OnSettlementCompleted(_ context.Context, _ string, _ *transaction.Transaction) error {
	m.SettlementsCompleted.Inc()
	return nil
}

// OnSettlementSkipped implements plugin.OnSettlementSkipped.
func (m *MetricsExtension) OnSettlementSkipped(_ context.Context, _, _ string) error {
	m.SettlementsSkipped.Inc()
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (m *MetricsExtension) OnSettlementFailed(_ context.Context, _ string, _ error) error {
	m.SettlementsFailed.Inc()
	return nil
}

// OnFlagUpdateFailed implements plugin.OnFlagUpdateFailed.
func (m *MetricsExtension) OnFlagUpdateFailed(_ context.Context, _ string, _ error) error {
	m.FlagUpdateFailures.Inc()
	return nil
}
