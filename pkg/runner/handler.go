package runner

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// IOHandler presents a run to a user and collects the answers to its questions.
type IOHandler interface {
	// Ask shows the pending question of a suspended state and blocks until an answer is read.
	// It returns io.EOF when the input is closed.
	Ask(ctx context.Context, state *domain.ExecutionState) (string, error)

	// Conclude shows the conclusion of a finished state.
	Conclude(ctx context.Context, state *domain.ExecutionState) error

	// Fail reports the error that stopped the run.
	Fail(ctx context.Context, err error) error
}

// ContentRenderer turns markdown into its terminal representation.
type ContentRenderer func(string) (string, error)
