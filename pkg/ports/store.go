package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// StateStore defines the interface for persisting execution state.
// A checkpoint written before a suspension is what makes resume possible.
type StateStore interface {
	// Save persists the state for a given session ID.
	// Implementations must store a copy; later mutations of state are not observed.
	Save(ctx context.Context, sessionID string, state *domain.ExecutionState) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.ExecutionState, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
