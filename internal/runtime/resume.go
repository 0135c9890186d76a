package runtime

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/arbor/pkg/domain"
)

// Resume completes the user_query step a suspended run is waiting on: the answer is reduced
// to the requested information, appended as the step result and the cursor advances by one.
// The state is left unchanged when the answer cannot be extracted. The caller continues the run with Run.
func (e *Engine) Resume(ctx context.Context, state *domain.ExecutionState, answer string) (*domain.ExecutionState, error) {
	if state.Phase != domain.PhaseSuspended {
		return state, &domain.ResumeError{SessionID: state.SessionID, Err: domain.ErrNotSuspended}
	}
	if err := state.Validate(); err != nil {
		return state, &domain.ResumeError{
			SessionID: state.SessionID,
			Err:       fmt.Errorf("%w: %v", domain.ErrCheckpointCorrupt, err),
		}
	}
	if e.reasoner == nil {
		return state, fmt.Errorf("reasoner: %w", ErrNotConfigured)
	}

	step, _ := state.CurrentStep()
	question := state.Pending.Question

	ctx, span := e.tracer.Start(ctx, "arbor.resume", trace.WithAttributes(
		attribute.String("session_id", state.SessionID),
		attribute.String("step", step.StepNumber),
	))
	defer span.End()

	start := time.Now()
	var extracted string
	attempts, err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		extracted, err = e.reasoner.Extract(ctx, question, answer)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return state, fail(span, fmt.Errorf("resume of step %s interrupted: %w", step.StepNumber, ctx.Err()))
		}
		return state, fail(span, &domain.StepError{StepNumber: step.StepNumber, Type: step.Type, Attempts: attempts, Err: err})
	}

	if err := e.commit(ctx, state, func(s *domain.ExecutionState) {
		s.Transcript = append(s.Transcript, domain.Message{Role: domain.RoleHuman, Content: answer})
		s.Results = append(s.Results, domain.StepResult{StepNumber: step.StepNumber, Result: extracted})
		s.Cursor++
		s.Pending = nil
		s.Phase = domain.PhaseExecuting
	}); err != nil {
		return state, fail(span, err)
	}

	e.logger.InfoContext(ctx, "run resumed", "session_id", state.SessionID, "step", step.StepNumber, "cursor", state.Cursor)
	e.emitStep(ctx, e.hooks.OnResume, domain.EventResume, state, step, time.Since(start), nil)
	return state, nil
}
