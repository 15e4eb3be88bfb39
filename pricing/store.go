package pricing

import "context"

type Store interface {
	Get(ctx context.Context, kind string) (*Entry, error)
	List(ctx context.Context, opts ListOpts) ([]*Entry, error)
	Upsert(ctx context.Context, e *Entry) error
}

type ListOpts struct {
	ActiveOnly bool
}
