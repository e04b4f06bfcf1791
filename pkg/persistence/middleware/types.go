// Package middleware wraps snapshot stores with masking and encryption.
package middleware

import "github.com/aretw0/wizards/pkg/ports"

// Middleware allows wrapping a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore

// Chain applies middlewares to store. The first middleware is the outermost,
// so Chain(s, mask, encrypt) masks before encrypting.
func Chain(store ports.SnapshotStore, mws ...Middleware) ports.SnapshotStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
