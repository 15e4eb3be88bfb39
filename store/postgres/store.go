package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("credits/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/postgres: migration failed: %w", err)
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
	m := new(pricingModel)
	err := s.pg.NewSelect(m).
		Where("kind = $1", kind).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrPricingNotFound
		}
		return nil, err
	}
	return fromPricingModel(m), nil
}

func (s *Store) ListPricing(ctx context.Context, opts pricing.ListOpts) ([]*pricing.Entry, error) {
	var models []pricingModel
	q := s.pg.NewSelect(&models)
	if opts.ActiveOnly {
		q = q.Where("is_active = $1", true)
	}
	q = q.OrderExpr("kind ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*pricing.Entry, len(models))
	for i := range models {
		result[i] = fromPricingModel(&models[i])
	}
	return result, nil
}

func (s *Store) UpsertPricing(ctx context.Context, e *pricing.Entry) error {
	m := toPricingModel(e)
	_, err := s.pg.NewInsert(m).
		OnConflict("(kind) DO UPDATE").
		Set("credits_cost = EXCLUDED.credits_cost").
		Set("is_active = EXCLUDED.is_active").
		Set("description = EXCLUDED.description").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Balance Store ====================

func (s *Store) OpenBalance(ctx context.Context, b *balance.Balance) error {
	m := toBalanceModel(b)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return credits.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, userID string) (*balance.Balance, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m), nil
}

// ==================== Ledger Store ====================

// debitSQL decrements the balance only if it covers the amount and appends
// the entry in the same statement. A duplicate reference aborts both.
const debitSQL = `
WITH debited AS (
    UPDATE credit_balances
    SET balance = balance - $1, updated_at = $2
    WHERE user_id = $3 AND balance >= $1
    RETURNING balance
)
INSERT INTO credit_transactions
    (id, user_id, type, amount, balance_after, source, description, related_operation_id, operation_kind, metadata, created_at)
SELECT $4, $3, $5, $6, debited.balance, $7, $8, $9, $10, $11::jsonb, $2
FROM debited
RETURNING balance_after`

const creditSQL = `
WITH credited AS (
    UPDATE credit_balances
    SET balance = balance + $1, updated_at = $2
    WHERE user_id = $3
    RETURNING balance
)
INSERT INTO credit_transactions
    (id, user_id, type, amount, balance_after, source, description, related_operation_id, operation_kind, metadata, created_at)
SELECT $4, $3, $5, $6, credited.balance, $7, $8, $9, $10, $11::jsonb, $2
FROM credited
RETURNING balance_after`

func (s *Store) DebitBalance(ctx context.Context, t *transaction.Transaction) (int64, error) {
	after, err := s.applyEntry(ctx, debitSQL, -t.Amount, t)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, credits.ErrAlreadyDebited
		}
		if isNoRows(err) {
			return 0, s.debitRejected(ctx, t)
		}
		return 0, err
	}
	t.BalanceAfter = after
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
	after, err := s.applyEntry(ctx, creditSQL, t.Amount, t)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, credits.ErrAlreadyCredited
		}
		if isNoRows(err) {
			return 0, credits.ErrAccountNotFound
		}
		return 0, err
	}
	t.BalanceAfter = after
	return after, nil
}

func (s *Store) applyEntry(ctx context.Context, query string, delta int64, t *transaction.Transaction) (int64, error) {
	md, err := json.Marshal(t.Metadata)
	if err != nil {
		return 0, fmt.Errorf("credits/postgres: encode metadata: %w", err)
	}
	if t.Metadata == nil {
		md = []byte("{}")
	}

	var after int64
	err = s.pg.NewRaw(query,
		delta,
		t.CreatedAt,
		t.UserID,
		t.ID.String(),
		string(t.Type),
		t.Amount,
		string(t.Source),
		t.Description,
		t.RelatedOperationID,
		t.OperationKind,
		string(md),
	).Scan(ctx, &after)
	return after, err
}

func (s *Store) AppendTrialTransaction(ctx context.Context, t *transaction.Transaction) error {
	m := toTransactionModel(t)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return credits.ErrAlreadyDebited
		}
		return err
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models).Where("user_id = $1", userID)

	argIdx := 1
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if opts.Source != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("source = $%d", argIdx), string(opts.Source))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	m := new(transactionModel)
	err := s.pg.NewSelect(m).
		Where("type = $1", string(typ)).
		Where("related_operation_id = $2", relatedOperationID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrNotFound
		}
		return nil, err
	}
	return fromTransactionModel(m)
}

func (s *Store) SumTransactions(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(amount), 0) FROM credit_transactions
		WHERE user_id = $1 AND source <> $2
	`, userID, string(transaction.SourceTrial)).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Account Flag Store ====================

func (s *Store) GetAccountFlags(ctx context.Context, userID string) (*account.Flags, error) {
	m := new(flagsModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, err
	}
	return fromFlagsModel(m), nil
}

func (s *Store) SetAccountFlags(ctx context.Context, f *account.Flags) error {
	m := toFlagsModel(f)
	_, err := s.pg.NewInsert(m).
		OnConflict("(user_id) DO UPDATE").
		Set("is_test_account = EXCLUDED.is_test_account").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Operation Store ====================

func (s *Store) CreateOperation(ctx context.Context, op *operation.Operation) error {
	m := toOperationModel(op)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return credits.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetOperation(ctx context.Context, operationID string) (*operation.Operation, error) {
	m := new(operationModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", operationID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrOperationNotFound
		}
		return nil, err
	}
	return fromOperationModel(m), nil
}

func (s *Store) UpdateOperationStatus(ctx context.Context, operationID string, status operation.Status) error {
	res, err := s.pg.NewUpdate((*operationModel)(nil)).
		Set("status = $1", string(status)).
		Set("updated_at = $2", now()).
		Where("id = $3", operationID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrOperationNotFound
	}
	return nil
}

// MarkOperationDeducted sets the billing flag only while it is still unset.
func (s *Store) MarkOperationDeducted(ctx context.Context, operationID string, amount int64, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := s.pg.NewUpdate((*operationModel)(nil)).
		Set("credits_deducted = $1", true).
		Set("credits_amount = $2", amount).
		Set("credits_deducted_at = $3", at).
		Set("updated_at = $4", at).
		Where("id = $5", operationID).
		Where("credits_deducted = $6", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		if _, err := s.GetOperation(ctx, operationID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) ListOperations(ctx context.Context, opts operation.ListOpts) ([]*operation.Operation, error) {
	var models []operationModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.UserID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("user_id = $%d", argIdx), opts.UserID)
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Unsettled {
		argIdx++
		q = q.Where(fmt.Sprintf("credits_deducted = $%d", argIdx), false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// isUniqueViolation reports a SQLSTATE 23505 error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
