package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/transaction"
)

// DeductCredits charges a user for one operation.
//
// For a regular account the store re-checks the balance, decrements it and
// appends the debit entry as one atomic unit; a refused or failed debit has
// no effect. For a test account a trial entry with BalanceAfter 0 is
// written and the balance is left alone.
func (e *Engine) DeductCredits(ctx context.Context, req DebitRequest) *DebitResult {
	if req.UserID == "" {
		return &DebitResult{Err: ValidationError{Field: "user_id", Message: "is required"}}
	}

	cost, err := e.resolveCost(ctx, req.OperationKind, req.Cost)
	if err != nil {
		return &DebitResult{Err: err}
	}

	isTest, err := e.isTestAccount(ctx, req.UserID)
	if err != nil {
		return &DebitResult{Amount: cost, Err: err}
	}

	txn := e.newEntry(req.UserID, transaction.TypeDebit, -cost, transaction.SourceAudit, req.Metadata)
	txn.Description = req.Description
	txn.RelatedOperationID = req.OperationID
	txn.OperationKind = req.OperationKind
	if req.OperationKind != "" {
		txn.Metadata[transaction.MetaOperationKind] = req.OperationKind
	}

	if isTest {
		return e.recordTrial(ctx, txn, cost)
	}

	newBalance, err := e.store.DebitBalance(ctx, txn)
	if err != nil {
		err = storeErr("debit balance", err)
		e.logDebitFailure(ctx, req, cost, err)
		return &DebitResult{Amount: cost, Err: err}
	}
	txn.BalanceAfter = newBalance

	e.logger.Debug("credits deducted",
		"user_id", req.UserID,
		"operation_id", req.OperationID,
		"operation_kind", req.OperationKind,
		"amount", cost,
		"balance_after", newBalance,
	)
	e.plugins.EmitCreditsDeducted(ctx, txn)

	return &DebitResult{
		Success:       true,
		Deducted:      true,
		Amount:        cost,
		NewBalance:    newBalance,
		TransactionID: txn.ID,
		Transaction:   txn,
	}
}

// recordTrial writes the test-account entry. The balance is never read or
// changed, so NewBalance is reported as 0.
func (e *Engine) recordTrial(ctx context.Context, txn *transaction.Transaction, cost int64) *DebitResult {
	txn.Source = transaction.SourceTrial
	txn.BalanceAfter = 0
	txn.Metadata[transaction.MetaTestAccount] = "true"

	if err := e.store.AppendTrialTransaction(ctx, txn); err != nil {
		err = storeErr("append trial transaction", err)
		if !errors.Is(err, ErrAlreadyDebited) {
			e.logger.Error("credits trial entry failed",
				"user_id", txn.UserID,
				"operation_id", txn.RelatedOperationID,
				"operation_kind", txn.OperationKind,
				"error", err,
			)
		}
		return &DebitResult{IsTestAccount: true, Amount: cost, Err: err}
	}

	e.plugins.EmitTrialRecorded(ctx, txn)

	return &DebitResult{
		Success:       true,
		Deducted:      true,
		IsTestAccount: true,
		Amount:        cost,
		TransactionID: txn.ID,
		Transaction:   txn,
	}
}

func (e *Engine) logDebitFailure(ctx context.Context, req DebitRequest, cost int64, err error) {
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		var current int64
		if bal, berr := e.store.GetBalance(ctx, req.UserID); berr == nil {
			current = bal.Balance
		}
		e.logger.Info("credits debit refused",
			"user_id", req.UserID,
			"operation_id", req.OperationID,
			"operation_kind", req.OperationKind,
			"required", cost,
			"balance", current,
		)
		e.plugins.EmitInsufficientCredits(ctx, req.UserID, req.OperationKind, cost, current)
	case errors.Is(err, ErrAlreadyDebited), errors.Is(err, ErrAccountNotFound):
		e.logger.Info("credits debit rejected",
			"user_id", req.UserID,
			"operation_id", req.OperationID,
			"error", err,
		)
	default:
		e.logger.Error("credits debit failed",
			"user_id", req.UserID,
			"operation_id", req.OperationID,
			"operation_kind", req.OperationKind,
			"error", err,
		)
	}
}

// GrantCredits adds credits to a user. A repeated ReferenceID is
// acknowledged with Success=true and Credited=false.
func (e *Engine) GrantCredits(ctx context.Context, req GrantRequest) *CreditResult {
	if req.UserID == "" {
		return &CreditResult{Err: ValidationError{Field: "user_id", Message: "is required"}}
	}
	if req.Amount <= 0 {
		return &CreditResult{Err: ValidationError{Field: "amount", Message: "must be positive"}}
	}
	if req.Source == "" {
		req.Source = transaction.SourcePurchase
	}
	if !req.Source.Valid() || req.Source == transaction.SourceAudit || req.Source == transaction.SourceTrial {
		return &CreditResult{Err: ValidationError{Field: "source", Message: fmt.Sprintf("%q cannot credit", req.Source)}}
	}

	txn := e.newEntry(req.UserID, transaction.TypeCredit, req.Amount, req.Source, req.Metadata)
	txn.Description = req.Description
	txn.RelatedOperationID = req.ReferenceID

	newBalance, err := e.store.CreditBalance(ctx, txn)
	if err != nil {
		err = storeErr("credit balance", err)
		if errors.Is(err, ErrAlreadyCredited) {
			return &CreditResult{Success: true, Amount: req.Amount}
		}
		e.logger.Error("credits grant failed",
			"user_id", req.UserID,
			"reference_id", req.ReferenceID,
			"error", err,
		)
		return &CreditResult{Amount: req.Amount, Err: err}
	}
	txn.BalanceAfter = newBalance

	e.plugins.EmitCreditsGranted(ctx, txn)

	return &CreditResult{
		Success:       true,
		Credited:      true,
		Amount:        req.Amount,
		NewBalance:    newBalance,
		TransactionID: txn.ID,
	}
}

func (e *Engine) newEntry(userID string, typ transaction.Type, amount int64, src transaction.Source, meta map[string]string) *transaction.Transaction {
	md := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		md[k] = v
	}
	return &transaction.Transaction{
		ID:        id.NewTransactionID(),
		UserID:    userID,
		Type:      typ,
		Amount:    amount,
		Source:    src,
		Metadata:  md,
		CreatedAt: e.now(),
	}
}
