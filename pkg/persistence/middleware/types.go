// Package middleware wraps checkpoint stores with at-rest protections.
package middleware

import "github.com/aretw0/arbor/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain wraps store so that the first middleware is the outermost.
// Chain(s, redact, encrypt) redacts before encrypting on Save.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
