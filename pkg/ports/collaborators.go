package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Planner turns a task into retrieval requests and a plan.
type Planner interface {
	// SearchQueries proposes the retrievals that ground planning, one per sub-question.
	SearchQueries(ctx context.Context, task string) ([]domain.RetrievalRequest, error)

	// Plan returns the raw plan text: one "Plan:" segment per step.
	Plan(ctx context.Context, task, context string) (string, error)
}

// Retriever is the knowledge backend.
type Retriever interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (domain.Retrieval, error)
}

// Solver is the external computational engine.
// A run that does not end in the completed status returns domain.ErrSolverIncomplete.
type Solver interface {
	Solve(ctx context.Context, problem string) (string, error)
}

// Reasoner is the reasoning model used by LLM steps, feedback extraction,
// calculation formulation and synthesis.
type Reasoner interface {
	// Answer responds to a free-form instruction, grounded on the retrieval context.
	Answer(ctx context.Context, instruction, context string) (string, error)

	// Extract pulls the information requested by question out of a human answer.
	Extract(ctx context.Context, question, answer string) (string, error)

	// Formulate states a calculation problem in formal and plain form.
	// variables lists the known values, one "<token> = <result>" line each.
	Formulate(ctx context.Context, problem, variables string) (domain.Calculation, error)

	// Conclude produces the cited final answer.
	// Outputs that fail validation are reported with domain.ErrInvalidOutput.
	Conclude(ctx context.Context, req domain.ConclusionRequest) (domain.Conclusion, error)
}
