// Package pricing holds the per-kind credit price list.
package pricing

import (
	"errors"
	"time"

	"github.com/xraph/credits/types"
)

// Built-in operation kinds.
const (
	KindResearch   = "research"
	KindABTest     = "ab_test"
	KindBusiness   = "business"
	KindHypotheses = "hypotheses"
)

// Entry is the price of one operation kind in credits.
type Entry struct {
	types.Entity
	Kind        string `json:"kind"`
	CreditsCost int64  `json:"credits_cost"`
	IsActive    bool   `json:"is_active"`
	Description string `json:"description,omitempty"`
}

// Validate reports whether the entry can be stored.
func (e *Entry) Validate() error {
	if e.Kind == "" {
		return errors.New("kind is required")
	}
	if e.CreditsCost <= 0 {
		return errors.New("credits_cost must be positive")
	}
	return nil
}

// Defaults returns the stock price list, stamped with t.
func Defaults(t time.Time) []*Entry {
	entity := types.NewEntity(t)
	return []*Entry{
		{Entity: entity, Kind: KindResearch, CreditsCost: 1, IsActive: true, Description: "Research audit"},
		{Entity: entity, Kind: KindABTest, CreditsCost: 1, IsActive: true, Description: "A/B test audit"},
		{Entity: entity, Kind: KindBusiness, CreditsCost: 2, IsActive: true, Description: "Business audit"},
		{Entity: entity, Kind: KindHypotheses, CreditsCost: 1, IsActive: true, Description: "Hypotheses audit"},
	}
}
