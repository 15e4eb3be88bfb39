package credits

import (
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Re-export the record types callers touch most so they don't have to
// import every subpackage.

// Entity is re-exported from types package.
type Entity = types.Entity

// Transaction is a ledger entry.
type Transaction = transaction.Transaction

// Operation is a billable operation.
type Operation = operation.Operation

// PricingEntry is one price list row.
type PricingEntry = pricing.Entry

// Operation statuses.
const (
	StatusPending    = operation.StatusPending
	StatusProcessing = operation.StatusProcessing
	StatusCompleted  = operation.StatusCompleted
	StatusFailed     = operation.StatusFailed
)
