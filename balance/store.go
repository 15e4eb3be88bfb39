package balance

import "context"

type Store interface {
	// Open creates a zero balance row. Opening an existing account is an error.
	Open(ctx context.Context, b *Balance) error
	Get(ctx context.Context, userID string) (*Balance, error)
}
