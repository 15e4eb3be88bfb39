package operation

import (
	"context"
	"time"
)

type Store interface {
	Create(ctx context.Context, op *Operation) error
	Get(ctx context.Context, operationID string) (*Operation, error)
	SetStatus(ctx context.Context, operationID string, status Status) error
	// MarkDeducted sets the billing fields only while CreditsDeducted is
	// false. It reports whether this call made the transition.
	MarkDeducted(ctx context.Context, operationID string, amount int64, at time.Time) (bool, error)
	List(ctx context.Context, opts ListOpts) ([]*Operation, error)
}

type ListOpts struct {
	UserID string
	Status Status
	// Unsettled restricts the list to operations with CreditsDeducted false.
	Unsettled bool
	Limit     int
}
