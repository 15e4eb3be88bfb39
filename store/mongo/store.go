package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/balance"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	creditstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
)

// Collection name constants.
const (
	colPricing      = "credit_pricing"
	colBalances     = "credit_balances"
	colTransactions = "credit_transactions"
	colFlags        = "credit_account_flags"
	colOperations   = "credit_operations"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Debits and
// credits run in multi-document transactions, which need a replica set.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all credits collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Pricing Store ====================

func (s *Store) GetPricing(ctx context.Context, kind string) (*pricing.Entry, error) {
	var m pricingModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": kind}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrPricingNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get pricing: %w", err)
	}
	return fromPricingModel(&m), nil
}

func (s *Store) ListPricing(ctx context.Context, opts pricing.ListOpts) ([]*pricing.Entry, error) {
	var models []pricingModel

	filter := bson.M{}
	if opts.ActiveOnly {
		filter["is_active"] = true
	}

	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("credits/mongo: list pricing: %w", err)
	}

	result := make([]*pricing.Entry, len(models))
	for i := range models {
		result[i] = fromPricingModel(&models[i])
	}
	return result, nil
}

func (s *Store) UpsertPricing(ctx context.Context, e *pricing.Entry) error {
	_, err := s.mdb.NewUpdate((*pricingModel)(nil)).
		Filter(bson.M{"_id": e.Kind}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"credits_cost": e.CreditsCost,
				"is_active":    e.IsActive,
				"description":  e.Description,
				"updated_at":   e.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": e.CreatedAt},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: upsert pricing: %w", err)
	}
	return nil
}

// ==================== Balance Store ====================

func (s *Store) OpenBalance(ctx context.Context, b *balance.Balance) error {
	m := toBalanceModel(b)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAlreadyExists
		}
		return fmt.Errorf("credits/mongo: open balance: %w", err)
	}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, userID string) (*balance.Balance, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get balance: %w", err)
	}
	return fromBalanceModel(&m), nil
}

// ==================== Ledger Store ====================

func (s *Store) DebitBalance(ctx context.Context, t *transaction.Transaction) (int64, error) {
	cost := -t.Amount
	after, err := s.applyEntry(ctx, t, bson.M{"_id": t.UserID, "balance": bson.M{"$gte": cost}}, -cost)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, credits.ErrAlreadyDebited
		}
		if isNoDocuments(err) {
			return 0, s.debitRejected(ctx, t)
		}
		return 0, fmt.Errorf("credits/mongo: debit balance: %w", err)
	}
	return after, nil
}

// debitRejected reports why a debit matched no balance row. An existing
// debit for the same operation wins over a short balance.
func (s *Store) debitRejected(ctx context.Context, t *transaction.Transaction) error {
	if t.RelatedOperationID != "" {
		if _, err := s.GetTransactionByReference(ctx, transaction.TypeDebit, t.RelatedOperationID); err == nil {
			return credits.ErrAlreadyDebited
		}
	}
	if _, err := s.GetBalance(ctx, t.UserID); err != nil {
		return err
	}
	return credits.ErrInsufficientCredits
}

func (s *Store) CreditBalance(ctx context.Context, t *transaction.Transaction) (int64, error) {
	after, err := s.applyEntry(ctx, t, bson.M{"_id": t.UserID}, t.Amount)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, credits.ErrAlreadyCredited
		}
		if isNoDocuments(err) {
			return 0, credits.ErrAccountNotFound
		}
		return 0, fmt.Errorf("credits/mongo: credit balance: %w", err)
	}
	return after, nil
}

// applyEntry moves the matched balance by delta and inserts the entry in one
// session transaction. A duplicate reference aborts the balance change.
func (s *Store) applyEntry(ctx context.Context, t *transaction.Transaction, filter bson.M, delta int64) (int64, error) {
	balances := s.mdb.Collection(colBalances)
	txns := s.mdb.Collection(colTransactions)

	sess, err := balances.Database().Client().StartSession()
	if err != nil {
		return 0, err
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		var b struct {
			Balance int64 `bson:"balance"`
		}
		err := balances.FindOneAndUpdate(ctx, filter,
			bson.M{
				"$inc": bson.M{"balance": delta},
				"$set": bson.M{"updated_at": t.CreatedAt},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&b)
		if err != nil {
			return nil, err
		}

		t.BalanceAfter = b.Balance
		if _, err := txns.InsertOne(ctx, transactionDocument(t)); err != nil {
			return nil, err
		}
		return b.Balance, nil
	})
	if err != nil {
		return 0, err
	}
	after, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("credits/mongo: unexpected transaction result %T", res)
	}
	return after, nil
}

// transactionDocument is the raw document inserted inside a session
// transaction, where the grove insert builder is not used.
func transactionDocument(t *transaction.Transaction) bson.M {
	m := toTransactionModel(t)
	doc := bson.M{
		"_id":                  m.ID,
		"user_id":              m.UserID,
		"type":                 m.Type,
		"amount":               m.Amount,
		"balance_after":        m.BalanceAfter,
		"source":               m.Source,
		"description":          m.Description,
		"related_operation_id": m.RelatedOperationID,
		"operation_kind":       m.OperationKind,
		"created_at":           m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		doc["metadata"] = m.Metadata
	}
	return doc
}

func (s *Store) AppendTrialTransaction(ctx context.Context, t *transaction.Transaction) error {
	m := toTransactionModel(t)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAlreadyDebited
		}
		return fmt.Errorf("credits/mongo: append trial transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel

	filter := bson.M{"user_id": userID}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.Source != "" {
		filter["source"] = string(opts.Source)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list transactions: %w", err)
	}

	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) GetTransactionByReference(ctx context.Context, typ transaction.Type, relatedOperationID string) (*transaction.Transaction, error) {
	var m transactionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"type": string(typ), "related_operation_id": relatedOperationID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get transaction by reference: %w", err)
	}
	return fromTransactionModel(&m)
}

func (s *Store) SumTransactions(ctx context.Context, userID string) (int64, error) {
	pipeline := bson.A{
		bson.M{
			"$match": bson.M{
				"user_id": userID,
				"source":  bson.M{"$ne": string(transaction.SourceTrial)},
			},
		},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("credits/mongo: sum transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("credits/mongo: sum transactions decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Account Flag Store ====================

func (s *Store) GetAccountFlags(ctx context.Context, userID string) (*account.Flags, error) {
	var m flagsModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get account flags: %w", err)
	}
	return fromFlagsModel(&m), nil
}

func (s *Store) SetAccountFlags(ctx context.Context, f *account.Flags) error {
	_, err := s.mdb.NewUpdate((*flagsModel)(nil)).
		Filter(bson.M{"_id": f.UserID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"is_test_account": f.IsTestAccount,
				"updated_at":      f.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": f.CreatedAt},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: set account flags: %w", err)
	}
	return nil
}

// ==================== Operation Store ====================

func (s *Store) CreateOperation(ctx context.Context, op *operation.Operation) error {
	m := toOperationModel(op)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAlreadyExists
		}
		return fmt.Errorf("credits/mongo: create operation: %w", err)
	}
	return nil
}

func (s *Store) GetOperation(ctx context.Context, operationID string) (*operation.Operation, error) {
	var m operationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": operationID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrOperationNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get operation: %w", err)
	}
	return fromOperationModel(&m), nil
}

func (s *Store) UpdateOperationStatus(ctx context.Context, operationID string, status operation.Status) error {
	res, err := s.mdb.NewUpdate((*operationModel)(nil)).
		Filter(bson.M{"_id": operationID}).
		Set("status", string(status)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: update operation status: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrOperationNotFound
	}
	return nil
}

// MarkOperationDeducted sets the billing flag only while it is still unset.
func (s *Store) MarkOperationDeducted(ctx context.Context, operationID string, amount int64, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := s.mdb.NewUpdate((*operationModel)(nil)).
		Filter(bson.M{"_id": operationID, "credits_deducted": false}).
		Set("credits_deducted", true).
		Set("credits_amount", amount).
		Set("credits_deducted_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("credits/mongo: mark operation deducted: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetOperation(ctx, operationID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) ListOperations(ctx context.Context, opts operation.ListOpts) ([]*operation.Operation, error) {
	var models []operationModel

	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.Unsettled {
		filter["credits_deducted"] = false
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list operations: %w", err)
	}

	result := make([]*operation.Operation, len(models))
	for i := range models {
		result[i] = fromOperationModel(&models[i])
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all credits collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "type", Value: 1}, {Key: "related_operation_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"related_operation_id": bson.M{"$gt": ""}}),
			},
		},
		colOperations: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "credits_deducted", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colPricing:  {{Keys: bson.D{{Key: "is_active", Value: 1}}}},
		colBalances: {},
		colFlags:    {},
	}
}
