// Package audithook bridges credit billing events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnInsufficientCredits = (*Extension)(nil)
	_ plugin.OnCreditsDeducted     = (*Extension)(nil)
	_ plugin.OnTrialRecorded       = (*Extension)(nil)
	_ plugin.OnCreditsGranted      = (*Extension)(nil)
	_ plugin.OnPricingChanged      = (*Extension)(nil)
	_ plugin.OnSettlementCompleted = (*Extension)(nil)
	_ plugin.OnSettlementSkipped   = (*Extension)(nil)
	_ plugin.OnSettlementFailed    = (*Extension)(nil)
	_ plugin.OnFlagUpdateFailed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges credit billing events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Guard hooks
// ──────────────────────────────────────────────────

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (e *Extension) OnInsufficientCredits(ctx context.Context, userID, operationKind string, required, current int64) error {
	return e.record(ctx, ActionCreditsDenied, SeverityWarning, OutcomeFailure,
		ResourceAccount, userID, CategoryAccess, nil,
		"operation_kind", operationKind,
		"required", required,
		"balance", current,
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsDeducted implements plugin.OnCreditsDeducted.
func (e *Extension) OnCreditsDeducted(ctx context.Context, txn *transaction.Transaction) error {
	return e.recordEntry(ctx, ActionCreditsDeducted, txn)
}

// OnTrialRecorded implements plugin.OnTrialRecorded.
func (e *Extension) OnTrialRecorded(ctx context.Context, txn *transaction.Transaction) error {
	return e.recordEntry(ctx, ActionTrialRecorded, txn)
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (e *Extension) OnCreditsGranted(ctx context.Context, txn *transaction.Transaction) error {
	return e.recordEntry(ctx, ActionCreditsGranted, txn)
}

// OnPricingChanged implements plugin.OnPricingChanged.
func (e *Extension) OnPricingChanged(ctx context.Context, entry *pricing.Entry) error {
	return e.record(ctx, ActionPricingChanged, SeverityInfo, OutcomeSuccess,
		ResourcePricing, entry.Kind, CategoryConfig, nil,
		"credits_cost", entry.CreditsCost,
		"is_active", entry.IsActive,
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementCompleted implements plugin.OnSettlementCompleted.
func (e *Extension) OnSettlementCompleted(ctx context.Context, operationID string, txn *transaction.Transaction) error {
	kv := []any{"operation_id", operationID}
	if txn != nil {
		kv = append(kv, "user_id", txn.UserID, "amount", -txn.Amount, "transaction_id", txn.ID.String())
	}
	return e.record(ctx, ActionSettlementCompleted, SeverityInfo, OutcomeSuccess,
		ResourceOperation, operationID, CategoryBilling, nil, kv...)
}

// OnSettlementSkipped implements plugin.OnSettlementSkipped.
func (e *Extension) OnSettlementSkipped(ctx context.Context, operationID, reason string) error {
	return e.record(ctx, ActionSettlementSkipped, SeverityInfo, OutcomeSuccess,
		ResourceOperation, operationID, CategoryBilling, nil,
		"reason", reason,
	)
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (e *Extension) OnSettlementFailed(ctx context.Context, operationID string, err error) error {
	return e.record(ctx, ActionSettlementFailed, SeverityWarning, OutcomeFailure,
		ResourceOperation, operationID, CategoryBilling, err,
	)
}

// OnFlagUpdateFailed implements plugin.OnFlagUpdateFailed. The charge
// committed, so the outcome is partial.
func (e *Extension) OnFlagUpdateFailed(ctx context.Context, operationID string, err error) error {
	return e.record(ctx, ActionFlagUpdateFailed, SeverityCritical, OutcomePartial,
		ResourceOperation, operationID, CategoryBilling, err,
	)
}

func (e *Extension) recordEntry(ctx context.Context, action string, txn *transaction.Transaction) error {
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryBilling, nil,
		"user_id", txn.UserID,
		"amount", txn.Amount,
		"balance_after", txn.BalanceAfter,
		"source", string(txn.Source),
		"operation_id", txn.RelatedOperationID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
