// Package plugin provides an extensible plugin system for the credits engine.
// Plugins hook into billing events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Guard hooks
// ──────────────────────────────────────────────────

// CheckEvent describes one billing guard decision.
type CheckEvent struct {
	UserID          string
	OperationKind   string
	CanProceed      bool
	IsTestAccount   bool
	CurrentBalance  int64
	RequiredCredits int64
	Err             error
}

// OnCreditsChecked is called after every guard decision.
type OnCreditsChecked interface {
	Plugin
	OnCreditsChecked(ctx context.Context, evt CheckEvent) error
}

// OnInsufficientCredits is called when a check or debit is refused for lack of credits.
type OnInsufficientCredits interface {
	Plugin
	OnInsufficientCredits(ctx context.Context, userID, operationKind string, required, current int64) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsDeducted is called after a real balance debit commits.
type OnCreditsDeducted interface {
	Plugin
	OnCreditsDeducted(ctx context.Context, txn *transaction.Transaction) error
}

// OnTrialRecorded is called after a test-account entry is written.
type OnTrialRecorded interface {
	Plugin
	OnTrialRecorded(ctx context.Context, txn *transaction.Transaction) error
}

// OnCreditsGranted is called after a credit commits.
type OnCreditsGranted interface {
	Plugin
	OnCreditsGranted(ctx context.Context, txn *transaction.Transaction) error
}

// OnPricingChanged is called after a price list entry is written.
type OnPricingChanged interface {
	Plugin
	OnPricingChanged(ctx context.Context, entry *pricing.Entry) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementCompleted is called when a settlement charged an operation.
type OnSettlementCompleted interface {
	Plugin
	OnSettlementCompleted(ctx context.Context, operationID string, txn *transaction.Transaction) error
}

// OnSettlementSkipped is called when a settlement found the operation already charged.
type OnSettlementSkipped interface {
	Plugin
	OnSettlementSkipped(ctx context.Context, operationID, reason string) error
}

// OnSettlementFailed is called when a settlement returned an error without charging.
type OnSettlementFailed interface {
	Plugin
	OnSettlementFailed(ctx context.Context, operationID string, err error) error
}

// OnFlagUpdateFailed is called when the balance was charged but the
// operation could not be marked. Reconciliation picks these up.
type OnFlagUpdateFailed interface {
	Plugin
	OnFlagUpdateFailed(ctx context.Context, operationID string, err error) error
}
