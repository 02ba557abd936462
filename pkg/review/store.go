package review

import "context"

// Store persists review items. Implementations must make Update a
// conditional write on the expected state.
type Store interface {
	Create(ctx context.Context, item *Item) error
	// Get returns ErrNotFound when the item does not exist.
	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, filter Filter) ([]*Item, error)
	// Update replaces the item only if its stored state equals expected.
	// It returns ErrStateConflict otherwise, or ErrNotFound.
	Update(ctx context.Context, item *Item, expected State) error
}
