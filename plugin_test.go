package credits_test

import (
	"context"
	"sync"

	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
)

// recordingPlugin counts engine events by name.
type recordingPlugin struct {
	mu     sync.Mutex
	counts map[string]int
}

var (
	_ plugin.OnInsufficientCredits = (*recordingPlugin)(nil)
	_ plugin.OnTrialRecorded       = (*recordingPlugin)(nil)
	_ plugin.OnCreditsGranted      = (*recordingPlugin)(nil)
	_ plugin.OnSettlementCompleted = (*recordingPlugin)(nil)
	_ plugin.OnSettlementSkipped   = (*recordingPlugin)(nil)
)

func newRecordingPlugin() *recordingPlugin {
	return &recordingPlugin{counts: make(map[string]int)}
}

func (p *recordingPlugin) Name() string { return "recorder" }

func (p *recordingPlugin) inc(name string) error {
	p.mu.Lock()
	p.counts[name]++
	p.mu.Unlock()
	return nil
}

func (p *recordingPlugin) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

func (p *recordingPlugin) OnCreditsChecked(context.Context, plugin.CheckEvent) error {
	return p.inc("checked")
}

func (p *recordingPlugin) OnInsufficientCredits(context.Context, string, string, int64, int64) error {
	return p.inc("insufficient")
}

func (p *recordingPlugin) OnCreditsDeducted(context.Context, *transaction.Transaction) error {
	return p.inc("deducted")
}

func (p *recordingPlugin) OnTrialRecorded(context.Context, *transaction.Transaction) error {
	return p.inc("trial")
}

func (p *recordingPlugin) OnCreditsGranted(context.Context, *transaction.Transaction) error {
	return p.inc("granted")
}

func (p *recordingPlugin) OnPricingChanged(context.Context, *pricing.Entry) error {
	return p.inc("pricing")
}

func (p *recordingPlugin) OnSettlementCompleted(context.Context, string, *transaction.Transaction) error {
	return p.inc("settled")
}

func (p *recordingPlugin) OnSettlementSkipped(context.Context, string, string) error {
	return p.inc("skipped")
}

func (p *recordingPlugin) OnSettlementFailed(context.Context, string, error) error {
	return p.inc("settle_failed")
}

func (p *recordingPlugin) OnFlagUpdateFailed(context.Context, string, error) error {
	return p.inc("flag_failed")
}
