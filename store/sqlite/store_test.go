package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/credits"
	"github.com/xraph/credits/balance"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store/sqlite"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// openStore migrates a fresh file-backed database.
func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	// One connection serializes writers so SQLite never reports SQLITE_BUSY.
	require.NoError(t, drv.Open(ctx, filepath.Join(t.TempDir(), "credits.db"), driver.WithPoolSize(1)))
	db, err := grove.Open(drv)
	require.NoError(t, err)

	s := sqlite.New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func debitEntry(userID string, amount int64, related string) *transaction.Transaction {
	return &transaction.Transaction{
		ID:                 id.NewTransactionID(),
		UserID:             userID,
		Type:               transaction.TypeDebit,
		Amount:             amount,
		Source:             transaction.SourceAudit,
		RelatedOperationID: related,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestDebitRejectionReasons(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.OpenBalance(ctx, &balance.Balance{Entity: types.NewEntity(time.Now().UTC()), UserID: "u1"}))
	assert.ErrorIs(t, s.OpenBalance(ctx, &balance.Balance{Entity: types.NewEntity(time.Now().UTC()), UserID: "u1"}), credits.ErrAlreadyExists)
	_, err := s.CreditBalance(ctx, &transaction.Transaction{
		ID: id.NewTransactionID(), UserID: "u1", Type: transaction.TypeCredit,
		Amount: 10, Source: transaction.SourceBonus, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	after, err := s.DebitBalance(ctx, debitEntry("u1", -2, "op-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), after)

	// Already charged wins over a cost the balance cannot cover.
	_, err = s.DebitBalance(ctx, debitEntry("u1", -9, "op-1"))
	assert.ErrorIs(t, err, credits.ErrAlreadyDebited)

	_, err = s.DebitBalance(ctx, debitEntry("u1", -2, "op-1"))
	assert.ErrorIs(t, err, credits.ErrAlreadyDebited)

	_, err = s.DebitBalance(ctx, debitEntry("u1", -9, "op-2"))
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)

	_, err = s.DebitBalance(ctx, debitEntry("nobody", -1, "op-3"))
	assert.ErrorIs(t, err, credits.ErrAccountNotFound)

	b, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), b.Balance)
	assert.False(t, b.UpdatedAt.IsZero())
}

func TestOperationTimestampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	op := &operation.Operation{
		Entity: types.NewEntity(created),
		ID:     "op-1",
		UserID: "u1",
		Kind:   pricing.KindResearch,
		Status: operation.StatusCompleted,
	}
	require.NoError(t, s.CreateOperation(ctx, op))

	marked, err := s.MarkOperationDeducted(ctx, "op-1", 1, created.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, marked)

	got, err := s.GetOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created))
	require.NotNil(t, got.CreditsDeductedAt)
	assert.True(t, got.CreditsDeductedAt.Equal(created.Add(time.Minute)))
}

// EngineTestSuite runs the billing engine against a real SQLite database.
type EngineTestSuite struct {
	suite.Suite
	ctx    context.Context
	engine *credits.Engine
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.engine = credits.New(openStore(s.T()))
	s.Require().NoError(s.engine.Start(s.ctx))
	s.Require().NoError(s.engine.SeedPricing(s.ctx, nil))
}

func (s *EngineTestSuite) fund(userID string, amount int64) {
	_, err := s.engine.OpenAccount(s.ctx, userID)
	s.Require().NoError(err)
	if amount > 0 {
		s.Require().NoError(s.engine.GrantCredits(s.ctx, credits.GrantRequest{
			UserID: userID, Amount: amount, Source: transaction.SourceBonus,
		}).Err)
	}
}

func (s *EngineTestSuite) completedOperation(userID, kind string) string {
	op := &operation.Operation{UserID: userID, Kind: kind}
	s.Require().NoError(s.engine.RegisterOperation(s.ctx, op))
	s.Require().NoError(s.engine.CompleteOperation(s.ctx, op.ID))
	return op.ID
}

func (s *EngineTestSuite) debits(userID string) []*transaction.Transaction {
	txns, err := s.engine.Transactions(s.ctx, userID, transaction.ListOpts{Type: transaction.TypeDebit})
	s.Require().NoError(err)
	return txns
}

func (s *EngineTestSuite) balance(userID string) int64 {
	b, err := s.engine.Balance(s.ctx, userID)
	s.Require().NoError(err)
	return b.Balance
}

func (s *EngineTestSuite) TestCheckAndDebit() {
	s.fund("u1", 10)

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
	s.True(d.CanProceed)
	s.Equal(int64(2), d.RequiredCredits)
	s.Equal(int64(10), d.CurrentBalance)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{
		UserID: "u1", OperationKind: pricing.KindBusiness, OperationID: "op-1",
	})
	s.Require().NoError(res.Err)
	s.True(res.Deducted)
	s.Equal(int64(8), res.NewBalance)

	debits := s.debits("u1")
	s.Require().Len(debits, 1)
	s.Equal(int64(-2), debits[0].Amount)
	s.Equal(int64(8), debits[0].BalanceAfter)
	s.Equal(transaction.SourceAudit, debits[0].Source)
	s.False(debits[0].CreatedAt.IsZero())
	s.Equal(int64(8), s.balance("u1"))
}

func (s *EngineTestSuite) TestCheckInsufficient() {
	s.fund("u1", 1)

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
	s.False(d.CanProceed)
	s.Equal(int64(2), d.RequiredCredits)
	s.Equal(int64(1), d.CurrentBalance)
	s.ErrorIs(d.Err, credits.ErrInsufficientCredits)
}

func (s *EngineTestSuite) TestTestAccountBypass() {
	s.fund("tester", 0)
	s.Require().NoError(s.engine.SetTestAccount(s.ctx, "tester", true))

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "tester", OperationKind: pricing.KindResearch, Cost: 5})
	s.True(d.CanProceed)
	s.True(d.IsTestAccount)
	s.Equal(int64(0), d.CurrentBalance)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "tester", OperationKind: pricing.KindResearch, Cost: 5})
	s.Require().NoError(res.Err)
	s.True(res.Success)
	s.True(res.IsTestAccount)

	debits := s.debits("tester")
	s.Require().Len(debits, 1)
	s.Equal(int64(-5), debits[0].Amount)
	s.Equal(int64(0), debits[0].BalanceAfter)
	s.Equal(transaction.SourceTrial, debits[0].Source)
	s.Equal(int64(0), s.balance("tester"))
}

func (s *EngineTestSuite) TestSettleTwice() {
	s.fund("u1", 10)
	opID := s.completedOperation("u1", pricing.KindResearch)

	first := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
	s.Require().NoError(first.Err)
	s.True(first.Deducted)

	second := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
	s.Require().NoError(second.Err)
	s.True(second.Success)
	s.False(second.Deducted)

	s.Len(s.debits("u1"), 1)

	op, err := s.engine.Operation(s.ctx, opID)
	s.Require().NoError(err)
	s.True(op.CreditsDeducted)
	s.NotNil(op.CreditsDeductedAt)
}

func (s *EngineTestSuite) TestSettleProcessingOperation() {
	s.fund("u1", 10)
	op := &operation.Operation{UserID: "u1", Kind: pricing.KindResearch}
	s.Require().NoError(s.engine.RegisterOperation(s.ctx, op))
	s.Require().NoError(s.engine.StartOperation(s.ctx, op.ID))

	res := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: op.ID})
	s.False(res.Success)
	s.ErrorIs(res.Err, credits.ErrInvalidState)
	s.Empty(s.debits("u1"))

	got, err := s.engine.Operation(s.ctx, op.ID)
	s.Require().NoError(err)
	s.False(got.CreditsDeducted)
}

func (s *EngineTestSuite) TestConcurrentDebitsNeverOverdraw() {
	s.fund("u1", 3)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*credits.DebitResult, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			s.ErrorIs(r.Err, credits.ErrInsufficientCredits)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(int64(1), s.balance("u1"))
}

func (s *EngineTestSuite) TestConcurrentSettlementWithExactBalance() {
	s.fund("u1", 2)
	opID := s.completedOperation("u1", pricing.KindBusiness)

	const workers = 10
	var wg sync.WaitGroup
	results := make([]*credits.DebitResult, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
		}()
	}
	wg.Wait()

	deducted := 0
	for _, r := range results {
		s.True(r.Success)
		s.NoError(r.Err)
		if r.Deducted {
			deducted++
		}
	}
	s.Equal(1, deducted)
	s.Len(s.debits("u1"), 1)
	s.Equal(int64(0), s.balance("u1"))

	op, err := s.engine.Operation(s.ctx, opID)
	s.Require().NoError(err)
	s.True(op.CreditsDeducted)
}

func (s *EngineTestSuite) TestConservation() {
	s.fund("u1", 10)
	for range 3 {
		opID := s.completedOperation("u1", pricing.KindBusiness)
		s.Require().NoError(s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID}).Err)
	}
	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", Cost: 10})
	s.ErrorIs(res.Err, credits.ErrInsufficientCredits)

	report, err := s.engine.VerifyBalance(s.ctx, "u1")
	s.Require().NoError(err)
	s.True(report.Consistent)
	s.Equal(int64(4), report.StoredBalance)
	s.Equal(int64(4), report.LedgerBalance)

	txns, err := s.engine.Transactions(s.ctx, "u1", transaction.ListOpts{})
	s.Require().NoError(err)
	s.Len(txns, 4)
	for _, t := range txns {
		s.GreaterOrEqual(t.BalanceAfter, int64(0))
	}
}
