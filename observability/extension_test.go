package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/observability"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store/memory"
)

func TestMetricsFollowBillingFlow(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	engine := credits.New(memory.New(), credits.WithPlugin(metrics))
	require.NoError(t, engine.SeedPricing(ctx, nil))
	_, err := engine.OpenAccount(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, engine.GrantCredits(ctx, credits.GrantRequest{UserID: "u1", Amount: 3}).Err)

	d := engine.CheckCredits(ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
	require.True(t, d.CanProceed)

	op := &operation.Operation{UserID: "u1", Kind: pricing.KindBusiness, Status: operation.StatusCompleted}
	require.NoError(t, engine.RegisterOperation(ctx, op))
	require.NoError(t, engine.SafeDeductCredits(ctx, credits.DebitRequest{UserID: "u1", OperationID: op.ID}).Err)

	d = engine.CheckCredits(ctx, credits.CheckRequest{UserID: "u1", OperationKind: pricing.KindBusiness})
	require.False(t, d.CanProceed)

	assert.InDelta(t, 1, value(metrics.ChecksAllowed), 0)
	assert.InDelta(t, 1, value(metrics.ChecksDenied), 0)
	assert.InDelta(t, 1, value(metrics.InsufficientHit), 0)
	assert.InDelta(t, 1, value(metrics.DebitsCommitted), 0)
	assert.InDelta(t, 2, value(metrics.CreditsSpent), 0)
	assert.InDelta(t, 3, value(metrics.CreditsGranted), 0)
	assert.InDelta(t, 1, value(metrics.SettlementsCompleted), 0)
	assert.InDelta(t, 4, value(metrics.PricingChanges), 0)
}

func value(c observability.Counter) float64 {
	return testutil.ToFloat64(c.(prometheus.Collector))
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := observability.NewPrometheusFactory(reg)
	b := observability.NewPrometheusFactory(reg)

	a.Counter("credits.debits").Inc()
	b.Counter("credits.debits").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "credits_debits", families[0].GetName())
	assert.InDelta(t, 2, families[0].GetMetric()[0].GetCounter().GetValue(), 0)
}
