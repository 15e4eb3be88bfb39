package store

import (
	"context"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/balance"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
)

// Store is the unified storage interface for the credits engine.
// Methods are declared explicitly rather than by embedding the record
// package interfaces, whose short names would collide.
type Store interface {
	// Pricing methods
	GetPricing(ctx context.Context, kind string) (*pricing.Entry, error)
	ListPricing(ctx context.Context, opts pricing.ListOpts) ([]*pricing.Entry, error)
	UpsertPricing(ctx context.Context, e *pricing.Entry) error

	// Balance methods
	OpenBalance(ctx context.Context, b *balance.Balance) error
	GetBalance(ctx context.Context, userID string) (*balance.Balance, error)

	// Ledger methods. DebitBalance and CreditBalance are atomic: the balance
	// change and the appended entry either both happen or neither does.
	DebitBalance(ctx context.Context, t *transaction.Transaction) (int64, error)
	CreditBalance(ctx context.Context, t *transaction.Transaction) (int64, error)
	AppendTrialTransaction(ctx context.Context, t *transaction.Transaction) error
	ListTransactions(ctx context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error)
	GetTransactionByReference(ctx context.Context, typ transaction.Type, relatedOperationID string) (*transaction.Transaction, error)
	SumTransactions(ctx context.Context, userID string) (int64, error)

	// Account flag methods
	GetAccountFlags(ctx context.Context, userID string) (*account.Flags, error)
	SetAccountFlags(ctx context.Context, f *account.Flags) error

	// Operation methods
	CreateOperation(ctx context.Context, op *operation.Operation) error
	GetOperation(ctx context.Context, operationID string) (*operation.Operation, error)
	UpdateOperationStatus(ctx context.Context, operationID string, status operation.Status) error
	MarkOperationDeducted(ctx context.Context, operationID string, amount int64, at time.Time) (bool, error)
	ListOperations(ctx context.Context, opts operation.ListOpts) ([]*operation.Operation, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
