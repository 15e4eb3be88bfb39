package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/transaction"
)

// SafeDeductCredits settles a completed operation at most once.
//
// A second call for the same operation, whether sequential or concurrent,
// returns Success=true with Deducted=false and writes nothing. Concurrent
// settlements are ordered by the store's one-debit-per-operation rule, so
// exactly one of them charges. When the charge commits but the operation
// flag cannot be written, the result is still successful and carries
// FlagUpdateFailed plus ErrFlagUpdateFailed; ReconcileSettlements repairs it.
func (e *Engine) SafeDeductCredits(ctx context.Context, req DebitRequest) *DebitResult {
	if req.OperationID == "" {
		return &DebitResult{Err: ValidationError{Field: "operation_id", Message: "is required"}}
	}

	op, err := e.store.GetOperation(ctx, req.OperationID)
	if err != nil {
		return e.settlementFailed(ctx, req, storeErr("get operation", err))
	}
	if op.UserID != req.UserID {
		return e.settlementFailed(ctx, req, ErrOperationNotOwned)
	}

	if op.CreditsDeducted {
		res := &DebitResult{Success: true}
		if op.CreditsAmount != nil {
			res.Amount = *op.CreditsAmount
		}
		e.plugins.EmitSettlementSkipped(ctx, op.ID, "already deducted")
		return res
	}

	if op.Status != operation.StatusCompleted {
		return e.settlementFailed(ctx, req, fmt.Errorf("%w: status is %s", ErrInvalidState, op.Status))
	}

	if req.OperationKind == "" {
		req.OperationKind = op.Kind
	}

	res := e.DeductCredits(ctx, req)
	if errors.Is(res.Err, ErrAlreadyDebited) {
		return e.settleDuplicate(ctx, op)
	}
	if res.Err != nil {
		e.plugins.EmitSettlementFailed(ctx, op.ID, res.Err)
		return res
	}

	if _, err := e.store.MarkOperationDeducted(ctx, op.ID, res.Amount, e.now()); err != nil {
		e.logger.Error("credits deducted but operation flag update failed",
			"user_id", req.UserID,
			"operation_id", op.ID,
			"operation_kind", req.OperationKind,
			"amount", res.Amount,
			"transaction_id", res.TransactionID.String(),
			"error", err,
		)
		res.FlagUpdateFailed = true
		res.Err = fmt.Errorf("%w: %w", ErrFlagUpdateFailed, err)
		e.plugins.EmitFlagUpdateFailed(ctx, op.ID, err)
		return res
	}

	e.plugins.EmitSettlementCompleted(ctx, op.ID, res.Transaction)
	return res
}

// settleDuplicate handles a settlement that lost the race to an existing
// debit. The flag is repaired from the winning entry when it is missing.
func (e *Engine) settleDuplicate(ctx context.Context, op *operation.Operation) *DebitResult {
	res := &DebitResult{Success: true}

	prior, err := e.store.GetTransactionByReference(ctx, transaction.TypeDebit, op.ID)
	if err != nil {
		e.logger.Warn("credits settlement: prior debit lookup failed",
			"operation_id", op.ID,
			"error", err,
		)
		e.plugins.EmitSettlementSkipped(ctx, op.ID, "already debited")
		return res
	}

	res.Amount = -prior.Amount
	res.TransactionID = prior.ID
	res.IsTestAccount = prior.IsTrial()

	if _, err := e.store.MarkOperationDeducted(ctx, op.ID, res.Amount, prior.CreatedAt); err != nil {
		e.logger.Warn("credits settlement: flag repair failed",
			"operation_id", op.ID,
			"error", err,
		)
	}

	e.plugins.EmitSettlementSkipped(ctx, op.ID, "already debited")
	return res
}

func (e *Engine) settlementFailed(ctx context.Context, req DebitRequest, err error) *DebitResult {
	e.logger.Info("credits settlement rejected",
		"user_id", req.UserID,
		"operation_id", req.OperationID,
		"error", err,
	)
	e.plugins.EmitSettlementFailed(ctx, req.OperationID, err)
	return &DebitResult{Err: err}
}
