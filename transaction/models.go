// Package transaction defines the append-only credit ledger entries.
package transaction

import (
	"time"

	"github.com/xraph/credits/id"
)

// Type is the direction of a ledger entry.
type Type string

const (
	TypeDebit  Type = "debit"
	TypeCredit Type = "credit"
)

// Source says why the entry exists.
type Source string

const (
	SourceAudit      Source = "audit"
	SourceTrial      Source = "trial"
	SourcePurchase   Source = "purchase"
	SourceBonus      Source = "bonus"
	SourceRefund     Source = "refund"
	SourceSignup     Source = "signup"
	SourceAdjustment Source = "adjustment"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceAudit, SourceTrial, SourcePurchase, SourceBonus, SourceRefund, SourceSignup, SourceAdjustment:
		return true
	}
	return false
}

// Metadata keys written by the engine.
const (
	MetaTestAccount   = "test_account"
	MetaOperationKind = "operation_kind"
	MetaNote          = "note"
)

// Transaction is an immutable ledger entry. Amount is signed: negative for
// debits, positive for credits. Trial entries record BalanceAfter as 0 and
// do not move the balance.
type Transaction struct {
	ID                 id.TransactionID  `json:"id"`
	UserID             string            `json:"user_id"`
	Type               Type              `json:"type"`
	Amount             int64             `json:"amount"`
	BalanceAfter       int64             `json:"balance_after"`
	Source             Source            `json:"source"`
	Description        string            `json:"description,omitempty"`
	RelatedOperationID string            `json:"related_operation_id,omitempty"`
	OperationKind      string            `json:"operation_kind,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// IsTrial reports whether the entry was written for a test account.
func (t *Transaction) IsTrial() bool { return t.Source == SourceTrial }

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
