// Package credits provides a prepaid credit ledger and billing guard for Go
// applications that charge per operation.
//
// Credits is designed as a library, not a service. Import it directly and
// give it a store:
//
//	import (
//	    "github.com/xraph/credits"
//	    "github.com/xraph/credits/store/postgres"
//	)
//
//	engine := credits.New(postgres.New(db),
//	    credits.WithLogger(logger),
//	    credits.WithDefaultBalance(3),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Billing flow
//
// Ask the guard before starting expensive work:
//
//	d := engine.CheckCredits(ctx, credits.CheckRequest{UserID: uid, OperationKind: "research"})
//	if !d.CanProceed {
//	    // d.Reason, d.Err; credits.IsPaymentRequired(d.Err) means top up
//	}
//
// Settle once the operation has completed. Settlement is keyed by operation
// id and charges at most once however often it is called:
//
//	res := engine.SafeDeductCredits(ctx, credits.DebitRequest{
//	    UserID:        uid,
//	    OperationID:   opID,
//	    OperationKind: "research",
//	})
//
// The guard only reads a snapshot. The debit re-checks the balance inside
// the store, so two concurrent debits can never take a balance below zero.
//
// # Test accounts
//
// Accounts flagged as test accounts always pass the guard. Their debits
// write a ledger entry with source "trial" and balance_after 0 and leave the
// balance untouched.
//
// # Ledger
//
// Every balance change appends an immutable transaction. Replaying the
// non-trial amounts of a user reproduces the stored balance; VerifyBalance
// checks this and ReconcileSettlements repairs operations that were charged
// but not marked.
//
// # TypeID
//
// Ledger entries use TypeIDs:
//
//	txn_01h2xcejqtf2nbrexx3vqjhp41  // Transaction ID
//	op_01h455vb4pex5vsknk084sn02q   // generated Operation ID
package credits
