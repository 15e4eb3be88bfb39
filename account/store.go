package account

import "context"

type Store interface {
	Get(ctx context.Context, userID string) (*Flags, error)
	Set(ctx context.Context, f *Flags) error
}
