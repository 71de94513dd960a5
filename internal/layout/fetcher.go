package layout

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Store abstracts layout lookup for the fetcher.
type Store interface {
	GetByName(ctx context.Context, name string) (Config, error)
}

// Fetcher deduplicates concurrent lookups of the same layout name;
// batch runs for different batches frequently share one layout.
type Fetcher struct {
	store Store
	group singleflight.Group
}

// NewFetcher constructs a Fetcher over the given store.
func NewFetcher(store Store) *Fetcher {
	return &Fetcher{store: store}
}

// Get returns the named layout, collapsing concurrent calls.
func (f *Fetcher) Get(ctx context.Context, name string) (Config, error) {
	v, err, _ := f.group.Do(name, func() (any, error) {
		return f.store.GetByName(ctx, name)
	})
	if err != nil {
		return Config{}, err
	}
	return v.(Config), nil
}
