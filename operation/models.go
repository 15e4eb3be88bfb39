// Package operation holds the billing view of a pipeline operation.
package operation

import (
	"time"

	"github.com/xraph/credits/types"
)

// Status is owned by the pipeline that runs the operation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Operation is a billable unit of work. CreditsDeducted moves from false to
// true exactly once and never back.
type Operation struct {
	types.Entity
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Kind              string     `json:"kind"`
	Status            Status     `json:"status"`
	CreditsDeducted   bool       `json:"credits_deducted"`
	CreditsAmount     *int64     `json:"credits_amount,omitempty"`
	CreditsDeductedAt *time.Time `json:"credits_deducted_at,omitempty"`
}
