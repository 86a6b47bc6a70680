package notify

import (
	"context"
	"errors"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// ContactResolver maps an owner and channel to a destination address.
// An empty destination with a nil error means the owner has none.
type ContactResolver interface {
	Resolve(ctx context.Context, ownerID string, ch domain.Channel) (string, error)
}

// StoreResolver resolves destinations from a store.ContactStore.
type StoreResolver struct {
	contacts store.ContactStore
}

var _ ContactResolver = (*StoreResolver)(nil)

// NewStoreResolver creates a StoreResolver.
func NewStoreResolver(contacts store.ContactStore) *StoreResolver {
	return &StoreResolver{contacts: contacts}
}

// Resolve implements ContactResolver.
func (r *StoreResolver) Resolve(ctx context.Context, ownerID string, ch domain.Channel) (string, error) {
	c, err := r.contacts.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrContactNotFound) {
			return "", nil
		}
		return "", err
	}
	return c.Destination(ch), nil
}
