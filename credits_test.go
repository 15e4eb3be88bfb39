package credits_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/xraph/credits"
	"github.com/xraph/credits/balance"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/transaction"
)

// flagFailStore fails every operation flag update.
type flagFailStore struct {
	*memory.Store
	err error
}

func (s *flagFailStore) MarkOperationDeducted(context.Context, string, int64, time.Time) (bool, error) {
	return false, s.err
}

// creditFailOnceStore fails the first balance credit only.
type creditFailOnceStore struct {
	*memory.Store
	once sync.Once
	err  error
}

func (s *creditFailOnceStore) CreditBalance(ctx context.Context, t *transaction.Transaction) (int64, error) {
	fail := false
	s.once.Do(func() { fail = true })
	if fail {
		return 0, s.err
	}
	return s.Store.CreditBalance(ctx, t)
}

// panicStore panics on balance reads.
type panicStore struct {
	*memory.Store
}

func (s *panicStore) GetBalance(context.Context, string) (*balance.Balance, error) {
	panic("balance table exploded")
}

// brokenBalanceStore fails balance reads with a driver-style error.
type brokenBalanceStore struct {
	*memory.Store
}

func (s *brokenBalanceStore) GetBalance(context.Context, string) (*balance.Balance, error) {
	return nil, errors.New("connection reset by peer")
}

type EngineTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Store
	engine *credits.Engine
	events *recordingPlugin
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.events = newRecordingPlugin()
	s.engine = credits.New(s.store, credits.WithPlugin(s.events))
	s.Require().NoError(s.engine.Start(s.ctx))
	s.Require().NoError(s.engine.SeedPricing(s.ctx, nil))
}

// fund opens an account holding amount credits.
func (s *EngineTestSuite) fund(userID string, amount int64) {
	_, err := s.engine.OpenAccount(s.ctx, userID)
	s.Require().NoError(err)
	if amount > 0 {
		res := s.engine.GrantCredits(s.ctx, credits.GrantRequest{
			UserID: userID, Amount: amount, Source: transaction.SourceBonus,
		})
		s.Require().NoError(res.Err)
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

func (s *EngineTestSuite) TestDebitLeavesBalanceAndEntry() {
	s.fund("u1", 10)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{
		UserID: "u1", OperationKind: pricing.KindBusiness, OperationID: "op-1", Description: "Business audit",
	})
	s.Require().NoError(res.Err)
	s.True(res.Success)
	s.True(res.Deducted)
	s.Equal(int64(8), res.NewBalance)
	s.Equal(int64(2), res.Amount)

	debits := s.debits("u1")
	s.Require().Len(debits, 1)
	s.Equal(int64(-2), debits[0].Amount)
	s.Equal(int64(8), debits[0].BalanceAfter)
	s.Equal(transaction.SourceAudit, debits[0].Source)
	s.Equal("op-1", debits[0].RelatedOperationID)
	s.Equal(res.TransactionID, debits[0].ID)

	bal, err := s.engine.Balance(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(int64(8), bal.Balance)
}

func (s *EngineTestSuite) TestCheckInsufficient() {
	s.fund("u1", 1)

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
	s.False(d.CanProceed)
	s.Equal(int64(1), d.CurrentBalance)
	s.Equal(int64(2), d.RequiredCredits)
	s.ErrorIs(d.Err, credits.ErrInsufficientCredits)
	s.True(credits.IsPaymentRequired(d.Err))
	s.NotEmpty(d.Reason)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
	s.False(res.Success)
	s.ErrorIs(res.Err, credits.ErrInsufficientCredits)
	s.Empty(s.debits("u1"))
	s.Equal(2, s.events.count("insufficient"))
}

func (s *EngineTestSuite) TestCheckSufficient() {
	s.fund("u1", 2)

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
	s.True(d.CanProceed)
	s.NoError(d.Err)
	s.Equal(int64(2), d.CurrentBalance)
}

func (s *EngineTestSuite) TestTestAccountBypass() {
	s.fund("tester", 0)
	s.Require().NoError(s.engine.SetTestAccount(s.ctx, "tester", true))

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "tester", OperationKind: pricing.KindResearch, Cost: 5})
	s.True(d.CanProceed)
	s.True(d.IsTestAccount)
	s.Equal(int64(0), d.CurrentBalance)
	s.Equal(int64(5), d.RequiredCredits)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "tester", OperationKind: pricing.KindResearch, Cost: 5})
	s.Require().NoError(res.Err)
	s.True(res.Success)
	s.True(res.IsTestAccount)

	debits := s.debits("tester")
	s.Require().Len(debits, 1)
	s.Equal(int64(-5), debits[0].Amount)
	s.Equal(int64(0), debits[0].BalanceAfter)
	s.Equal(transaction.SourceTrial, debits[0].Source)
	s.Equal("true", debits[0].Metadata[transaction.MetaTestAccount])

	bal, err := s.engine.Balance(s.ctx, "tester")
	s.Require().NoError(err)
	s.Equal(int64(0), bal.Balance)

	report, err := s.engine.VerifyBalance(s.ctx, "tester")
	s.Require().NoError(err)
	s.True(report.Consistent)
	s.Equal(1, s.events.count("trial"))
}

func (s *EngineTestSuite) TestTestAccountWithoutBalanceRow() {
	s.Require().NoError(s.engine.SetTestAccount(s.ctx, "ghost", true))

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "ghost", OperationKind: pricing.KindResearch})
	s.True(d.CanProceed)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "ghost", OperationKind: pricing.KindResearch})
	s.True(res.Success)
}

func (s *EngineTestSuite) TestSettleTwice() {
	s.fund("u1", 10)
	opID := s.completedOperation("u1", pricing.KindResearch)

	first := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
	s.Require().NoError(first.Err)
	s.True(first.Success)
	s.True(first.Deducted)
	s.Equal(int64(9), first.NewBalance)

	second := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
	s.Require().NoError(second.Err)
	s.True(second.Success)
	s.False(second.Deducted)
	s.Equal(int64(1), second.Amount)

	s.Len(s.debits("u1"), 1)

	op, err := s.engine.Operation(s.ctx, opID)
	s.Require().NoError(err)
	s.True(op.CreditsDeducted)
	s.Require().NotNil(op.CreditsAmount)
	s.Equal(int64(1), *op.CreditsAmount)
	s.NotNil(op.CreditsDeductedAt)
	s.Equal(1, s.events.count("settled"))
	s.Equal(1, s.events.count("skipped"))
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

	s.Require().NoError(s.engine.FailOperation(s.ctx, op.ID))
	res = s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: op.ID})
	s.ErrorIs(res.Err, credits.ErrInvalidState)
	s.Empty(s.debits("u1"))
}

func (s *EngineTestSuite) TestSettleUnknownOrForeignOperation() {
	s.fund("u1", 10)
	s.fund("u2", 10)
	opID := s.completedOperation("u2", pricing.KindResearch)

	res := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: "missing"})
	s.ErrorIs(res.Err, credits.ErrOperationNotFound)

	res = s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
	s.ErrorIs(res.Err, credits.ErrOperationNotOwned)
	s.ErrorIs(res.Err, credits.ErrOperationNotFound)
	s.True(credits.IsNotFound(res.Err))

	s.Empty(s.debits("u1"))
	s.Empty(s.debits("u2"))
}

func (s *EngineTestSuite) TestSettleInsufficientLeavesOperationUnbilled() {
	s.fund("u1", 1)
	opID := s.completedOperation("u1", pricing.KindBusiness)

	res := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
	s.ErrorIs(res.Err, credits.ErrInsufficientCredits)

	op, err := s.engine.Operation(s.ctx, opID)
	s.Require().NoError(err)
	s.False(op.CreditsDeducted)

	report, err := s.engine.ReconcileSettlements(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal([]string{opID}, report.PendingBilling)
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

	bal, err := s.engine.Balance(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(int64(1), bal.Balance)
}

func (s *EngineTestSuite) TestConcurrentSettlementChargesOnce() {
	s.fund("u1", 10)
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

	bal, err := s.engine.Balance(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(int64(8), bal.Balance)

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
	for _, t := range txns {
		s.GreaterOrEqual(t.BalanceAfter, int64(0))
	}
}

func (s *EngineTestSuite) TestFlagUpdateFailureIsWarning() {
	failing := &flagFailStore{Store: memory.New(), err: errors.New("deadlock detected")}
	engine := credits.New(failing)
	s.Require().NoError(engine.SeedPricing(s.ctx, nil))
	_, err := engine.OpenAccount(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().NoError(engine.GrantCredits(s.ctx, credits.GrantRequest{UserID: "u1", Amount: 5}).Err)

	op := &operation.Operation{UserID: "u1", Kind: pricing.KindResearch, Status: operation.StatusCompleted}
	s.Require().NoError(engine.RegisterOperation(s.ctx, op))

	res := engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: op.ID})
	s.True(res.Success)
	s.True(res.Deducted)
	s.True(res.FlagUpdateFailed)
	s.ErrorIs(res.Err, credits.ErrFlagUpdateFailed)
	s.True(credits.IsRetryable(res.Err))

	// A retry finds the debit, does not charge again.
	retry := engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: op.ID})
	s.True(retry.Success)
	s.False(retry.Deducted)
	s.Equal(res.TransactionID, retry.TransactionID)

	bal, err := engine.Balance(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(int64(4), bal.Balance)
}

func (s *EngineTestSuite) TestReconcileRepairsFlag() {
	s.fund("u1", 5)
	opID := s.completedOperation("u1", pricing.KindBusiness)

	// Charge through the plain debit path so the flag stays unset.
	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID, OperationKind: pricing.KindBusiness})
	s.Require().NoError(res.Err)

	report, err := s.engine.ReconcileSettlements(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(1, report.Scanned)
	s.Equal([]string{opID}, report.Repaired)
	s.Empty(report.PendingBilling)

	op, err := s.engine.Operation(s.ctx, opID)
	s.Require().NoError(err)
	s.True(op.CreditsDeducted)
	s.Equal(int64(2), *op.CreditsAmount)

	again := s.engine.SafeDeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationID: opID})
	s.True(again.Success)
	s.False(again.Deducted)
	s.Len(s.debits("u1"), 1)
}

func (s *EngineTestSuite) TestGrantIdempotentByReference() {
	s.fund("u1", 0)

	req := credits.GrantRequest{UserID: "u1", Amount: 20, Source: transaction.SourcePurchase, ReferenceID: "pay_123"}
	first := s.engine.GrantCredits(s.ctx, req)
	s.Require().NoError(first.Err)
	s.True(first.Credited)
	s.Equal(int64(20), first.NewBalance)

	second := s.engine.GrantCredits(s.ctx, req)
	s.Require().NoError(second.Err)
	s.True(second.Success)
	s.False(second.Credited)

	bal, err := s.engine.Balance(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(int64(20), bal.Balance)
	s.Equal(1, s.events.count("granted"))
}

func (s *EngineTestSuite) TestGrantValidation() {
	s.fund("u1", 0)

	s.ErrorIs(s.engine.GrantCredits(s.ctx, credits.GrantRequest{UserID: "u1", Amount: 0}).Err, credits.ErrInvalidInput)
	s.ErrorIs(s.engine.GrantCredits(s.ctx, credits.GrantRequest{UserID: "u1", Amount: 1, Source: transaction.SourceTrial}).Err, credits.ErrInvalidInput)
	s.ErrorIs(s.engine.GrantCredits(s.ctx, credits.GrantRequest{UserID: "nobody", Amount: 1}).Err, credits.ErrAccountNotFound)
}

func (s *EngineTestSuite) TestOpenAccountGrantsDefaultBalance() {
	engine := credits.New(memory.New(), credits.WithDefaultBalance(3))

	bal, err := engine.OpenAccount(s.ctx, "new-user")
	s.Require().NoError(err)
	s.Equal(int64(3), bal.Balance)

	txns, err := engine.Transactions(s.ctx, "new-user", transaction.ListOpts{})
	s.Require().NoError(err)
	s.Require().Len(txns, 1)
	s.Equal(transaction.SourceSignup, txns[0].Source)

	_, err = engine.OpenAccount(s.ctx, "new-user")
	s.ErrorIs(err, credits.ErrAlreadyExists)
}

func (s *EngineTestSuite) TestOpenAccountRetryCompletesSignupGrant() {
	flaky := &creditFailOnceStore{Store: memory.New(), err: errors.New("connection refused")}
	engine := credits.New(flaky, credits.WithDefaultBalance(5))

	_, err := engine.OpenAccount(s.ctx, "late-user")
	s.Require().Error(err)

	bal, err := engine.Balance(s.ctx, "late-user")
	s.Require().NoError(err)
	s.Equal(int64(0), bal.Balance)

	bal, err = engine.OpenAccount(s.ctx, "late-user")
	s.Require().NoError(err)
	s.Equal(int64(5), bal.Balance)

	_, err = engine.OpenAccount(s.ctx, "late-user")
	s.ErrorIs(err, credits.ErrAlreadyExists)

	report, err := engine.VerifyBalance(s.ctx, "late-user")
	s.Require().NoError(err)
	s.True(report.Consistent)
	s.Equal(int64(5), report.LedgerBalance)
}

func (s *EngineTestSuite) TestUnknownPricing() {
	s.fund("u1", 10)

	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "u1", OperationKind: "teleport"})
	s.False(d.CanProceed)
	s.ErrorIs(d.Err, credits.ErrPricingNotFound)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "u1", OperationKind: "teleport"})
	s.ErrorIs(res.Err, credits.ErrPricingNotFound)

	d = s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "u1", OperationKind: "teleport", Cost: -1})
	s.ErrorIs(d.Err, credits.ErrInvalidInput)
}

func (s *EngineTestSuite) TestInactivePricing() {
	s.fund("u1", 10)
	s.Require().NoError(s.engine.SetPricing(s.ctx, &pricing.Entry{Kind: pricing.KindABTest, CreditsCost: 1, IsActive: false}))

	_, err := s.engine.Cost(s.ctx, pricing.KindABTest)
	s.ErrorIs(err, credits.ErrPricingNotFound)

	active, err := s.engine.ListPricing(s.ctx, true)
	s.Require().NoError(err)
	for _, e := range active {
		s.NotEqual(pricing.KindABTest, e.Kind)
	}
}

func (s *EngineTestSuite) TestMissingAccountDeniesCheck() {
	d := s.engine.CheckCredits(s.ctx, credits.CheckRequest{UserID: "nobody", OperationKind: pricing.KindResearch})
	s.False(d.CanProceed)
	s.ErrorIs(d.Err, credits.ErrAccountNotFound)

	res := s.engine.DeductCredits(s.ctx, credits.DebitRequest{UserID: "nobody", OperationKind: pricing.KindResearch})
	s.False(res.Success)
	s.ErrorIs(res.Err, credits.ErrAccountNotFound)
}

func TestCheckCreditsNeverPanics(t *testing.T) {
	ctx := context.Background()
	engine := credits.New(&panicStore{Store: memory.New()})
	require.NoError(t, engine.SeedPricing(ctx, nil))

	var d *credits.Decision
	assert.NotPanics(t, func() {
		d = engine.CheckCredits(ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindResearch})
	})
	require.NotNil(t, d)
	assert.False(t, d.CanProceed)
	assert.ErrorIs(t, d.Err, credits.ErrStoreFailure)
}

func TestCheckCreditsWrapsStoreErrors(t *testing.T) {
	ctx := context.Background()
	engine := credits.New(&brokenBalanceStore{Store: memory.New()})
	require.NoError(t, engine.SeedPricing(ctx, nil))

	d := engine.CheckCredits(ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindResearch})
	assert.False(t, d.CanProceed)
	assert.ErrorIs(t, d.Err, credits.ErrStoreFailure)
	assert.True(t, credits.IsRetryable(d.Err))
	assert.Equal(t, int64(1), d.RequiredCredits)
}

func TestPricingCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	st := memory.New()
	engine := credits.New(st, credits.WithClock(clock), credits.WithPricingCacheTTL(time.Minute))
	require.NoError(t, engine.SeedPricing(ctx, nil))

	cost, err := engine.Cost(ctx, pricing.KindResearch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cost)

	// A write behind the engine's back is hidden until the entry expires.
	require.NoError(t, st.UpsertPricing(ctx, &pricing.Entry{Kind: pricing.KindResearch, CreditsCost: 4, IsActive: true}))
	cost, err = engine.Cost(ctx, pricing.KindResearch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cost)

	now = now.Add(2 * time.Minute)
	cost, err = engine.Cost(ctx, pricing.KindResearch)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cost)

	// Writes through the engine invalidate immediately.
	require.NoError(t, engine.SetPricing(ctx, &pricing.Entry{Kind: pricing.KindResearch, CreditsCost: 7, IsActive: true}))
	cost, err = engine.Cost(ctx, pricing.KindResearch)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cost)
}

func TestPricingCacheDisabledAcrossInstances(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	admin := credits.New(st)
	require.NoError(t, admin.SeedPricing(ctx, nil))

	cached := credits.New(st, credits.WithPricingCacheTTL(time.Hour))
	uncached := credits.New(st, credits.WithPricingCacheTTL(0))
	for _, e := range []*credits.Engine{cached, uncached} {
		cost, err := e.Cost(ctx, pricing.KindBusiness)
		require.NoError(t, err)
		assert.Equal(t, int64(2), cost)
	}

	require.NoError(t, admin.SetPricing(ctx, &pricing.Entry{Kind: pricing.KindBusiness, CreditsCost: 2, IsActive: false}))

	cost, err := cached.Cost(ctx, pricing.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cost)

	_, err = uncached.Cost(ctx, pricing.KindBusiness)
	assert.ErrorIs(t, err, credits.ErrPricingNotFound)
}

func TestDefaultPricing(t *testing.T) {
	ctx := context.Background()
	engine := credits.New(memory.New())
	require.NoError(t, engine.SeedPricing(ctx, nil))

	tests := []struct {
		kind string
		want int64
	}{
		{pricing.KindResearch, 1},
		{pricing.KindABTest, 1},
		{pricing.KindBusiness, 2},
		{pricing.KindHypotheses, 1},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, err := engine.Cost(ctx, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
