// Package memory implements store.Store in process memory. A single mutex
// guards all maps, which makes every debit and credit atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/balance"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	creditstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	pricing  map[string]*pricing.Entry
	balances map[string]*balance.Balance
	flags    map[string]*account.Flags

	// Ledger in append order; refs indexes (type, related operation id).
	transactions []*transaction.Transaction
	refs         map[string]int

	operations map[string]*operation.Operation
}

func New() *Store {
	return &Store{
		pricing:    make(map[string]*pricing.Entry),
		balances:   make(map[string]*balance.Balance),
		flags:      make(map[string]*account.Flags),
		refs:       make(map[string]int),
		operations: make(map[string]*operation.Operation),
	}
}

func refKey(typ transaction.Type, related string) string {
	return string(typ) + "|" + related
}

// Pricing Store implementation
func (s *Store) GetPricing(_ context.Context, kind string) (*pricing.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.pricing[kind]; ok {
		c := *e
		return &c, nil
	}
	return nil, credits.ErrPricingNotFound
}

func (s *Store) ListPricing(_ context.Context, opts pricing.ListOpts) ([]*pricing.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*pricing.Entry, 0, len(s.pricing))
	for _, e := range s.pricing {
		if opts.ActiveOnly && !e.IsActive {
			continue
		}
		c := *e
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result, nil
}

func (s *Store) UpsertPricing(_ context.Context, e *pricing.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *e
	if existing, ok := s.pricing[e.Kind]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.pricing[e.Kind] = &c
	return nil
}

// Balance Store implementation
func (s *Store) OpenBalance(_ context.Context, b *balance.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.balances[b.UserID]; exists {
		return credits.ErrAlreadyExists
	}
	c := *b
	s.balances[b.UserID] = &c
	return nil
}

func (s *Store) GetBalance(_ context.Context, userID string) (*balance.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[userID]; ok {
		c := *b
		return &c, nil
	}
	return nil, credits.ErrAccountNotFound
}

// Ledger Store implementation
func (s *Store) DebitBalance(_ context.Context, t *transaction.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, credits.ErrStoreClosed
	}
	b, ok := s.balances[t.UserID]
	if !ok {
		return 0, credits.ErrAccountNotFound
	}
	if t.RelatedOperationID != "" {
		if _, dup := s.refs[refKey(transaction.TypeDebit, t.RelatedOperationID)]; dup {
			return 0, credits.ErrAlreadyDebited
		}
	}
	cost := -t.Amount
	if b.Balance < cost {
		return 0, credits.ErrInsufficientCredits
	}

	b.Balance -= cost
	b.UpdatedAt = t.CreatedAt
	t.BalanceAfter = b.Balance
	s.appendLocked(t)
	return b.Balance, nil
}

func (s *Store) CreditBalance(_ context.Context, t *transaction.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, credits.ErrStoreClosed
	}
	b, ok := s.balances[t.UserID]
	if !ok {
		return 0, credits.ErrAccountNotFound
	}
	if t.RelatedOperationID != "" {
		if _, dup := s.refs[refKey(transaction.TypeCredit, t.RelatedOperationID)]; dup {
			return 0, credits.ErrAlreadyCredited
		}
	}

	b.Balance += t.Amount
	b.UpdatedAt = t.CreatedAt
	t.BalanceAfter = b.Balance
	s.appendLocked(t)
	return b.Balance, nil
}

func (s *Store) AppendTrialTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if t.RelatedOperationID != "" {
		if _, dup := s.refs[refKey(t.Type, t.RelatedOperationID)]; dup {
			return credits.ErrAlreadyDebited
		}
	}
	s.appendLocked(t)
	return nil
}

func (s *Store) appendLocked(t *transaction.Transaction) {
	s.transactions = append(s.transactions, t.Clone())
	if t.RelatedOperationID != "" {
		s.refs[refKey(t.Type, t.RelatedOperationID)] = len(s.transactions) - 1
	}
}

func (s *Store) ListTransactions(_ context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*transaction.Transaction
	skipped := 0
	for i := len(s.transactions) - 1; i >= 0; i-- {
		t := s.transactions[i]
		if t.UserID != userID {
			continue
		}
		if opts.Type != "" && t.Type != opts.Type {
			continue
		}
		if opts.Source != "" && t.Source != opts.Source {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		result = append(result, t.Clone())
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) GetTransactionByReference(_ context.Context, typ transaction.Type, relatedOperationID string) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.refs[refKey(typ, relatedOperationID)]
	if !ok {
		return nil, credits.ErrNotFound
	}
	return s.transactions[i].Clone(), nil
}

func (s *Store) SumTransactions(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, t := range s.transactions {
		if t.UserID == userID && !t.IsTrial() {
			sum += t.Amount
		}
	}
	return sum, nil
}

// Account flag Store implementation
func (s *Store) GetAccountFlags(_ context.Context, userID string) (*account.Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.flags[userID]; ok {
		c := *f
		return &c, nil
	}
	return nil, credits.ErrAccountNotFound
}

func (s *Store) SetAccountFlags(_ context.Context, f *account.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *f
	if existing, ok := s.flags[f.UserID]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.flags[f.UserID] = &c
	return nil
}

// Operation Store implementation
func (s *Store) CreateOperation(_ context.Context, op *operation.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operations[op.ID]; exists {
		return credits.ErrAlreadyExists
	}
	s.operations[op.ID] = cloneOperation(op)
	return nil
}

func (s *Store) GetOperation(_ context.Context, operationID string) (*operation.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if op, ok := s.operations[operationID]; ok {
		return cloneOperation(op), nil
	}
	return nil, credits.ErrOperationNotFound
}

func (s *Store) UpdateOperationStatus(_ context.Context, operationID string, status operation.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[operationID]
	if !ok {
		return credits.ErrOperationNotFound
	}
	op.Status = status
	op.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkOperationDeducted(_ context.Context, operationID string, amount int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[operationID]
	if !ok {
		return false, credits.ErrOperationNotFound
	}
	if op.CreditsDeducted {
		return false, nil
	}
	at = at.UTC()
	op.CreditsDeducted = true
	op.CreditsAmount = &amount
	op.CreditsDeductedAt = &at
	op.UpdatedAt = at
	return true, nil
}

func (s *Store) ListOperations(_ context.Context, opts operation.ListOpts) ([]*operation.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*operation.Operation
	for _, op := range s.operations {
		if opts.UserID != "" && op.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && op.Status != opts.Status {
			continue
		}
		if opts.Unsettled && op.CreditsDeducted {
			continue
		}
		result = append(result, cloneOperation(op))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func cloneOperation(op *operation.Operation) *operation.Operation {
	c := *op
	if op.CreditsAmount != nil {
		v := *op.CreditsAmount
		c.CreditsAmount = &v
	}
	if op.CreditsDeductedAt != nil {
		v := *op.CreditsDeductedAt
		c.CreditsDeductedAt = &v
	}
	return &c
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return credits.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
