package credits

import (
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/transaction"
)

// CheckRequest asks whether a user may start an operation.
type CheckRequest struct {
	UserID        string `json:"user_id"`
	OperationKind string `json:"operation_kind"`
	// Cost overrides the price list when positive.
	Cost int64 `json:"cost,omitempty"`
}

// Decision is the billing guard's answer. It is always returned; failures
// show up as CanProceed=false with Reason and Err set.
type Decision struct {
	CanProceed      bool   `json:"can_proceed"`
	IsTestAccount   bool   `json:"is_test_account"`
	CurrentBalance  int64  `json:"current_balance"`
	RequiredCredits int64  `json:"required_credits"`
	Reason          string `json:"reason,omitempty"`
	Err             error  `json:"-"`
}

// DebitRequest charges a user for an operation.
type DebitRequest struct {
	UserID        string            `json:"user_id"`
	OperationKind string            `json:"operation_kind"`
	OperationID   string            `json:"operation_id"`
	Description   string            `json:"description,omitempty"`
	Cost          int64             `json:"cost,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// DebitResult reports a debit or settlement.
//
// Success with Deducted=false is a settlement that found the operation
// already charged. Success with FlagUpdateFailed=true means the balance was
// charged but the operation was not marked; Err then wraps
// ErrFlagUpdateFailed as a warning.
type DebitResult struct {
	Success          bool                     `json:"success"`
	Deducted         bool                     `json:"deducted"`
	IsTestAccount    bool                     `json:"is_test_account"`
	FlagUpdateFailed bool                     `json:"flag_update_failed,omitempty"`
	Amount           int64                    `json:"amount"`
	NewBalance       int64                    `json:"new_balance"`
	TransactionID    id.TransactionID         `json:"transaction_id"`
	Transaction      *transaction.Transaction `json:"transaction,omitempty"`
	Err              error                    `json:"-"`
}

// GrantRequest adds credits to a user.
type GrantRequest struct {
	UserID string             `json:"user_id"`
	Amount int64              `json:"amount"`
	Source transaction.Source `json:"source"`
	// ReferenceID makes the grant idempotent, typically a payment id.
	ReferenceID string            `json:"reference_id,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreditResult reports a grant. Success with Credited=false is a repeated
// ReferenceID.
type CreditResult struct {
	Success       bool             `json:"success"`
	Credited      bool             `json:"credited"`
	Amount        int64            `json:"amount"`
	NewBalance    int64            `json:"new_balance"`
	TransactionID id.TransactionID `json:"transaction_id"`
	Err           error            `json:"-"`
}

// BalanceReport compares a stored balance with its ledger replay.
type BalanceReport struct {
	UserID        string `json:"user_id"`
	StoredBalance int64  `json:"stored_balance"`
	LedgerBalance int64  `json:"ledger_balance"`
	Consistent    bool   `json:"consistent"`
}

// ReconcileReport summarises a settlement reconciliation pass.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	// Repaired operations had a debit but no flag; the flag is now set.
	Repaired []string `json:"repaired,omitempty"`
	// PendingBilling operations are completed with no debit.
	PendingBilling []string          `json:"pending_billing,omitempty"`
	Failed         map[string]string `json:"failed,omitempty"`
}
