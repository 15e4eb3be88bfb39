package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/credits/plugin"
)

// CheckCredits decides whether req.UserID may start an operation. It never
// returns an error; failures fold into a denied Decision.
//
// The decision reads a balance snapshot. DeductCredits re-checks at debit
// time, so a positive decision is not a reservation.
func (e *Engine) CheckCredits(ctx context.Context, req CheckRequest) (d *Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("credits check panicked",
				"user_id", req.UserID,
				"operation_kind", req.OperationKind,
				"panic", r,
			)
			d = &Decision{
				Reason: "internal error",
				Err:    fmt.Errorf("%w: check panicked: %v", ErrStoreFailure, r),
			}
		}
	}()

	d = e.checkCredits(ctx, req)

	e.plugins.EmitCreditsChecked(ctx, plugin.CheckEvent{
		UserID:          req.UserID,
		OperationKind:   req.OperationKind,
		CanProceed:      d.CanProceed,
		IsTestAccount:   d.IsTestAccount,
		CurrentBalance:  d.CurrentBalance,
		RequiredCredits: d.RequiredCredits,
		Err:             d.Err,
	})
	if errors.Is(d.Err, ErrInsufficientCredits) {
		e.plugins.EmitInsufficientCredits(ctx, req.UserID, req.OperationKind, d.RequiredCredits, d.CurrentBalance)
	}

	return d
}

func (e *Engine) checkCredits(ctx context.Context, req CheckRequest) *Decision {
	if req.UserID == "" {
		return denied(0, "user id is required", ValidationError{Field: "user_id", Message: "is required"})
	}

	cost, err := e.resolveCost(ctx, req.OperationKind, req.Cost)
	if err != nil {
		return denied(0, "unable to resolve operation cost", err)
	}

	isTest, err := e.isTestAccount(ctx, req.UserID)
	if err != nil {
		e.logger.Warn("credits check: account flags read failed",
			"user_id", req.UserID,
			"error", err,
		)
		return denied(cost, "unable to read account flags", err)
	}
	if isTest {
		return &Decision{
			CanProceed:      true,
			IsTestAccount:   true,
			RequiredCredits: cost,
		}
	}

	bal, err := e.store.GetBalance(ctx, req.UserID)
	if err != nil {
		err = storeErr("get balance", err)
		e.logger.Warn("credits check: balance read failed",
			"user_id", req.UserID,
			"error", err,
		)
		return denied(cost, "unable to read balance", err)
	}

	d := &Decision{
		CanProceed:      bal.Balance >= cost,
		CurrentBalance:  bal.Balance,
		RequiredCredits: cost,
	}
	if !d.CanProceed {
		d.Reason = fmt.Sprintf("insufficient credits: have %d, need %d", bal.Balance, cost)
		d.Err = ErrInsufficientCredits
	}
	return d
}

func denied(cost int64, reason string, err error) *Decision {
	return &Decision{RequiredCredits: cost, Reason: reason, Err: err}
}

// isTestAccount reads the account flags. A user without flags is a regular account.
func (e *Engine) isTestAccount(ctx context.Context, userID string) (bool, error) {
	flags, err := e.store.GetAccountFlags(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, storeErr("get account flags", err)
	}
	return flags.IsTestAccount, nil
}
