package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// database answers a database_query step from the retriever, unfiltered.
func (e *Engine) database(ctx context.Context, state *domain.ExecutionState, step domain.Step) (string, int, error) {
	if e.retriever == nil {
		return "", 0, fmt.Errorf("retriever: %w", ErrNotConfigured)
	}
	query := e.resolveInline(ctx, state, step)

	var text string
	attempts, err := e.retry.Do(ctx, func(ctx context.Context) error {
		res, err := e.retriever.Retrieve(ctx, domain.RetrievalRequest{Query: query})
		text = res.Text
		return err
	})
	return text, attempts, err
}

// reason answers an LLM step, grounded on the retrieval context of the run.
func (e *Engine) reason(ctx context.Context, state *domain.ExecutionState, step domain.Step) (string, int, error) {
	if e.reasoner == nil {
		return "", 0, fmt.Errorf("reasoner: %w", ErrNotConfigured)
	}
	instruction := e.resolveInline(ctx, state, step)

	var answer string
	attempts, err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		answer, err = e.reasoner.Answer(ctx, instruction, state.Context)
		return err
	})
	return answer, attempts, err
}

// calculate formulates the problem with the dependency listing and hands the plain form to the solver.
func (e *Engine) calculate(ctx context.Context, state *domain.ExecutionState, step domain.Step) (string, int, error) {
	if e.reasoner == nil {
		return "", 0, fmt.Errorf("reasoner: %w", ErrNotConfigured)
	}
	if e.solver == nil {
		return "", 0, fmt.Errorf("solver: %w", ErrNotConfigured)
	}
	variables := e.resolveListing(ctx, state, step)

	var calc domain.Calculation
	attempts, err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		calc, err = e.reasoner.Formulate(ctx, step.StepInput, variables)
		if err != nil {
			return err
		}
		return calc.Validate()
	})
	if err != nil {
		return "", attempts, fmt.Errorf("formulation failed: %w", err)
	}

	var answer string
	n, err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		answer, err = e.solver.Solve(ctx, calc.Plain)
		return err
	})
	return answer, attempts + n, err
}

// retrieve is used for the initial retrieval before planning.
func (e *Engine) retrieve(ctx context.Context, req domain.RetrievalRequest) (string, error) {
	if e.retriever == nil {
		return "", fmt.Errorf("retriever: %w", ErrNotConfigured)
	}
	var text string
	_, err := e.retry.Do(ctx, func(ctx context.Context) error {
		res, err := e.retriever.Retrieve(ctx, req)
		text = res.Text
		return err
	})
	return text, err
}

func (e *Engine) resolveInline(ctx context.Context, state *domain.ExecutionState, step domain.Step) string {
	input, unresolved := ResolveInline(step, state.Results)
	e.reportUnresolved(ctx, state, step, unresolved)
	return input
}

func (e *Engine) resolveListing(ctx context.Context, state *domain.ExecutionState, step domain.Step) string {
	listing, unresolved := ResolveListing(step, state.Results)
	e.reportUnresolved(ctx, state, step, unresolved)
	return listing
}

// reportUnresolved makes missing dependency results visible; execution proceeds regardless.
func (e *Engine) reportUnresolved(ctx context.Context, state *domain.ExecutionState, step domain.Step, tokens []string) {
	for _, token := range tokens {
		e.logger.WarnContext(ctx, "dependency has no result",
			"session_id", state.SessionID,
			"step", step.StepNumber,
			"dependency", token,
		)
		if e.hooks.OnUnresolvedDependency != nil {
			e.hooks.OnUnresolvedDependency(ctx, &domain.DependencyEvent{
				EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventUnresolved, SessionID: state.SessionID},
				StepNumber: step.StepNumber,
				Token:      token,
			})
		}
	}
}
