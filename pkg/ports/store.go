package ports

import (
	"context"

	"github.com/aretw0/wizards/pkg/domain"
)

// SnapshotStore persists drawer state between process restarts.
type SnapshotStore interface {
	// Save persists the state for a given drawer ID.
	Save(ctx context.Context, id string, state *domain.State) error

	// Load retrieves the state for a given drawer ID.
	// Returns domain.ErrSessionNotFound if the drawer does not exist.
	Load(ctx context.Context, id string) (*domain.State, error)

	// Delete removes the state for a given drawer ID.
	// Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored drawers.
	List(ctx context.Context) ([]string, error)
}

// PreferenceStore is the persistent user-scoped flag storage.
// Keys are opaque strings; values are booleans.
type PreferenceStore interface {
	// GetBool returns the stored value, or def when the key was never written.
	GetBool(ctx context.Context, key string, def bool) (bool, error)

	// SetBool writes the value.
	SetBool(ctx context.Context, key string, value bool) error
}
