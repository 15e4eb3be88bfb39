package transaction

import "context"

// Store is the ledger side of the data store. Debit and Credit change the
// balance and append the entry as one atomic unit; the store fills in
// BalanceAfter and returns the new balance.
type Store interface {
	// Debit fails with an insufficient-credits error when the balance is
	// below -t.Amount, and with an already-debited error when a debit for
	// t.RelatedOperationID exists.
	Debit(ctx context.Context, t *Transaction) (int64, error)
	// Credit fails with an already-credited error when a credit for
	// t.RelatedOperationID exists.
	Credit(ctx context.Context, t *Transaction) (int64, error)
	// AppendTrial writes a trial entry without touching any balance.
	AppendTrial(ctx context.Context, t *Transaction) error

	List(ctx context.Context, userID string, opts ListOpts) ([]*Transaction, error)
	GetByReference(ctx context.Context, typ Type, relatedOperationID string) (*Transaction, error)
	// Sum totals the non-trial amounts of a user.
	Sum(ctx context.Context, userID string) (int64, error)
}

type ListOpts struct {
	Type   Type
	Source Source
	Limit  int
	Offset int
}
