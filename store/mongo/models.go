package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/balance"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// ==================== Pricing models ====================

type pricingModel struct {
	grove.BaseModel `grove:"table:credit_pricing"`

	Kind        string    `grove:"kind,pk"      bson:"_id"`
	CreditsCost int64     `grove:"credits_cost" bson:"credits_cost"`
	IsActive    bool      `grove:"is_active"    bson:"is_active"`
	Description string    `grove:"description"  bson:"description"`
	CreatedAt   time.Time `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"   bson:"updated_at"`
}

func fromPricingModel(m *pricingModel) *pricing.Entry {
	return &pricing.Entry{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Kind:        m.Kind,
		CreditsCost: m.CreditsCost,
		IsActive:    m.IsActive,
		Description: m.Description,
	}
}

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:credit_balances"`

	UserID    string    `grove:"user_id,pk"  bson:"_id"`
	Balance   int64     `grove:"balance"     bson:"balance"`
	CreatedAt time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toBalanceModel(b *balance.Balance) *balanceModel {
	return &balanceModel{
		UserID:    b.UserID,
		Balance:   b.Balance,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func fromBalanceModel(m *balanceModel) *balance.Balance {
	return &balance.Balance{
		Entity:  types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		UserID:  m.UserID,
		Balance: m.Balance,
	}
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:credit_transactions"`

	ID                 string            `grove:"id,pk"                bson:"_id"`
	UserID             string            `grove:"user_id"              bson:"user_id"`
	Type               string            `grove:"type"                 bson:"type"`
	Amount             int64             `grove:"amount"               bson:"amount"`
	BalanceAfter       int64             `grove:"balance_after"        bson:"balance_after"`
	Source             string            `grove:"source"               bson:"source"`
	Description        string            `grove:"description"          bson:"description"`
	RelatedOperationID string            `grove:"related_operation_id" bson:"related_operation_id"`
	OperationKind      string            `grove:"operation_kind"       bson:"operation_kind"`
	Metadata           map[string]string `grove:"metadata"             bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"           bson:"created_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:                 t.ID.String(),
		UserID:             t.UserID,
		Type:               string(t.Type),
		Amount:             t.Amount,
		BalanceAfter:       t.BalanceAfter,
		Source:             string(t.Source),
		Description:        t.Description,
		RelatedOperationID: t.RelatedOperationID,
		OperationKind:      t.OperationKind,
		Metadata:           t.Metadata,
		CreatedAt:          t.CreatedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse transaction id %q: %w", m.ID, err)
	}
	return &transaction.Transaction{
		ID:                 txnID,
		UserID:             m.UserID,
		Type:               transaction.Type(m.Type),
		Amount:             m.Amount,
		BalanceAfter:       m.BalanceAfter,
		Source:             transaction.Source(m.Source),
		Description:        m.Description,
		RelatedOperationID: m.RelatedOperationID,
		OperationKind:      m.OperationKind,
		Metadata:           m.Metadata,
		CreatedAt:          m.CreatedAt,
	}, nil
}

// ==================== Account flag models ====================

type flagsModel struct {
	grove.BaseModel `grove:"table:credit_account_flags"`

	UserID        string    `grove:"user_id,pk"      bson:"_id"`
	IsTestAccount bool      `grove:"is_test_account" bson:"is_test_account"`
	CreatedAt     time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"      bson:"updated_at"`
}

func fromFlagsModel(m *flagsModel) *account.Flags {
	return &account.Flags{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		UserID:        m.UserID,
		IsTestAccount: m.IsTestAccount,
	}
}

// ==================== Operation models ====================

type operationModel struct {
	grove.BaseModel `grove:"table:credit_operations"`

	ID                string     `grove:"id,pk"               bson:"_id"`
	UserID            string     `grove:"user_id"             bson:"user_id"`
	Kind              string     `grove:"kind"                bson:"kind"`
	Status            string     `grove:"status"              bson:"status"`
	CreditsDeducted   bool       `grove:"credits_deducted"    bson:"credits_deducted"`
	CreditsAmount     *int64     `grove:"credits_amount"      bson:"credits_amount,omitempty"`
	CreditsDeductedAt *time.Time `grove:"credits_deducted_at" bson:"credits_deducted_at,omitempty"`
	CreatedAt         time.Time  `grove:"created_at"          bson:"created_at"`
	UpdatedAt         time.Time  `grove:"updated_at"          bson:"updated_at"`
}

func toOperationModel(op *operation.Operation) *operationModel {
	return &operationModel{
		ID:                op.ID,
		UserID:            op.UserID,
		Kind:              op.Kind,
		Status:            string(op.Status),
		CreditsDeducted:   op.CreditsDeducted,
		CreditsAmount:     op.CreditsAmount,
		CreditsDeductedAt: op.CreditsDeductedAt,
		CreatedAt:         op.CreatedAt,
		UpdatedAt:         op.UpdatedAt,
	}
}

func fromOperationModel(m *operationModel) *operation.Operation {
	return &operation.Operation{
		Entity:            types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                m.ID,
		UserID:            m.UserID,
		Kind:              m.Kind,
		Status:            operation.Status(m.Status),
		CreditsDeducted:   m.CreditsDeducted,
		CreditsAmount:     m.CreditsAmount,
		CreditsDeductedAt: m.CreditsDeductedAt,
	}
}
