package credits

import (
	"context"
	"errors"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/balance"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// OpenAccount creates the balance row for userID. The configured default
// balance is granted as a signup credit so the ledger replays to the
// balance. Opening an existing account returns ErrAlreadyExists unless it
// completes a signup grant that an earlier attempt failed to apply.
func (e *Engine) OpenAccount(ctx context.Context, userID string) (*balance.Balance, error) {
	if userID == "" {
		return nil, ValidationError{Field: "user_id", Message: "is required"}
	}

	b := &balance.Balance{Entity: types.NewEntity(e.now()), UserID: userID}
	existed := false
	if err := e.store.OpenBalance(ctx, b); err != nil {
		err = storeErr("open balance", err)
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		existed = true
	}

	granted := false
	if e.defaultBalance > 0 {
		// The signup reference keeps the grant single even across retries.
		res := e.GrantCredits(ctx, GrantRequest{
			UserID:      userID,
			Amount:      e.defaultBalance,
			Source:      transaction.SourceSignup,
			ReferenceID: "signup:" + userID,
			Description: "Signup credits",
		})
		if res.Err != nil {
			return nil, res.Err
		}
		granted = res.Credited
	}
	if existed && !granted {
		return nil, ErrAlreadyExists
	}

	e.logger.Info("credits account opened",
		"user_id", userID,
		"default_balance", e.defaultBalance,
	)

	return e.Balance(ctx, userID)
}

// Balance returns the stored balance of userID.
func (e *Engine) Balance(ctx context.Context, userID string) (*balance.Balance, error) {
	b, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, storeErr("get balance", err)
	}
	return b, nil
}

// Transactions lists the ledger entries of userID, newest first.
func (e *Engine) Transactions(ctx context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	txns, err := e.store.ListTransactions(ctx, userID, opts)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return txns, nil
}

// SetTestAccount flags or unflags userID as a test account.
func (e *Engine) SetTestAccount(ctx context.Context, userID string, isTest bool) error {
	if userID == "" {
		return ValidationError{Field: "user_id", Message: "is required"}
	}
	f := &account.Flags{Entity: types.NewEntity(e.now()), UserID: userID, IsTestAccount: isTest}
	if err := e.store.SetAccountFlags(ctx, f); err != nil {
		return storeErr("set account flags", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Operations
// ──────────────────────────────────────────────────

// RegisterOperation records a billable operation in its unbilled state.
// An empty ID is filled with a generated "op_" id.
func (e *Engine) RegisterOperation(ctx context.Context, op *operation.Operation) error {
	if op.UserID == "" {
		return ValidationError{Field: "user_id", Message: "is required"}
	}
	if op.ID == "" {
		op.ID = id.NewOperationID().String()
	}
	if op.Status == "" {
		op.Status = operation.StatusPending
	}
	if !op.Status.Valid() {
		return ValidationError{Field: "status", Message: "unknown status " + string(op.Status)}
	}
	op.CreditsDeducted = false
	op.CreditsAmount = nil
	op.CreditsDeductedAt = nil
	op.Entity = types.NewEntity(e.now())

	if err := e.store.CreateOperation(ctx, op); err != nil {
		return storeErr("create operation", err)
	}
	return nil
}

// Operation returns an operation by id.
func (e *Engine) Operation(ctx context.Context, operationID string) (*operation.Operation, error) {
	op, err := e.store.GetOperation(ctx, operationID)
	if err != nil {
		return nil, storeErr("get operation", err)
	}
	return op, nil
}

// StartOperation moves an operation to processing.
func (e *Engine) StartOperation(ctx context.Context, operationID string) error {
	return e.setOperationStatus(ctx, operationID, operation.StatusProcessing)
}

// CompleteOperation moves an operation to completed, making it settleable.
func (e *Engine) CompleteOperation(ctx context.Context, operationID string) error {
	return e.setOperationStatus(ctx, operationID, operation.StatusCompleted)
}

// FailOperation moves an operation to failed. Failed operations are never charged.
func (e *Engine) FailOperation(ctx context.Context, operationID string) error {
	return e.setOperationStatus(ctx, operationID, operation.StatusFailed)
}

func (e *Engine) setOperationStatus(ctx context.Context, operationID string, status operation.Status) error {
	if err := e.store.UpdateOperationStatus(ctx, operationID, status); err != nil {
		return storeErr("update operation status", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────

// VerifyBalance replays the non-trial ledger of userID and compares it with
// the stored balance.
func (e *Engine) VerifyBalance(ctx context.Context, userID string) (*BalanceReport, error) {
	b, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, storeErr("get balance", err)
	}
	sum, err := e.store.SumTransactions(ctx, userID)
	if err != nil {
		return nil, storeErr("sum transactions", err)
	}

	report := &BalanceReport{
		UserID:        userID,
		StoredBalance: b.Balance,
		LedgerBalance: sum,
		Consistent:    b.Balance == sum,
	}
	if !report.Consistent {
		e.logger.Error("credits balance drift",
			"user_id", userID,
			"stored", b.Balance,
			"ledger", sum,
		)
	}
	return report, nil
}

// ReconcileSettlements scans completed, unflagged operations. Those with a
// debit entry get their flag repaired; the rest are reported as pending
// billing. limit <= 0 scans everything.
func (e *Engine) ReconcileSettlements(ctx context.Context, limit int) (*ReconcileReport, error) {
	ops, err := e.store.ListOperations(ctx, operation.ListOpts{
		Status:    operation.StatusCompleted,
		Unsettled: true,
		Limit:     limit,
	})
	if err != nil {
		return nil, storeErr("list operations", err)
	}

	report := &ReconcileReport{Scanned: len(ops)}
	for _, op := range ops {
		txn, err := e.store.GetTransactionByReference(ctx, transaction.TypeDebit, op.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				report.PendingBilling = append(report.PendingBilling, op.ID)
				continue
			}
			report.fail(op.ID, err)
			continue
		}

		if _, err := e.store.MarkOperationDeducted(ctx, op.ID, -txn.Amount, txn.CreatedAt); err != nil {
			report.fail(op.ID, err)
			continue
		}
		report.Repaired = append(report.Repaired, op.ID)
	}

	e.logger.Info("credits settlements reconciled",
		"scanned", report.Scanned,
		"repaired", len(report.Repaired),
		"pending_billing", len(report.PendingBilling),
		"failed", len(report.Failed),
	)
	return report, nil
}

func (r *ReconcileReport) fail(operationID string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]string)
	}
	r.Failed[operationID] = err.Error()
}
