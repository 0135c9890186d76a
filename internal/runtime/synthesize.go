package runtime

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// ConclusionStep names the synthesis in step errors.
const ConclusionStep = "conclusion"

// synthesize asks the reasoner for the cited conclusion, retrying outputs that fail validation.
func (e *Engine) synthesize(ctx context.Context, state *domain.ExecutionState) error {
	if e.reasoner == nil {
		return &domain.StepError{StepNumber: ConclusionStep, Type: domain.StepLLM, Err: ErrNotConfigured}
	}

	req := domain.ConclusionRequest{
		Task:    state.Task,
		Context: state.Context,
		Plan:    state.Plan,
		Results: state.Results,
		Sources: sources(state),
	}

	var (
		conclusion domain.Conclusion
		err        error
		attempts   int
	)
	for attempts < e.synthesisAttempts {
		var n int
		n, err = e.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			conclusion, err = e.reasoner.Conclude(ctx, req)
			if err != nil {
				return err
			}
			return conclusion.Validate()
		})
		attempts += n
		if err == nil || ctx.Err() != nil || !errors.Is(err, domain.ErrInvalidOutput) {
			break
		}
		e.logger.WarnContext(ctx, "conclusion rejected", "session_id", state.SessionID, "attempt", attempts, "err", err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.StepError{StepNumber: ConclusionStep, Type: domain.StepLLM, Attempts: attempts, Err: err}
	}

	if err := e.commit(ctx, state, func(s *domain.ExecutionState) {
		s.Conclusion = &conclusion
		s.Transcript = append(s.Transcript, domain.Message{Role: domain.RoleAssistant, Content: conclusion.Conclusion})
		if len(conclusion.Citations) > 0 {
			s.Transcript = append(s.Transcript, domain.Message{
				Role:    domain.RoleAssistant,
				Content: "References: " + strings.Join(conclusion.Citations, "; "),
			})
		}
		s.Phase = domain.PhaseDone
	}); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "run concluded", "session_id", state.SessionID, "citations", len(conclusion.Citations))
	if e.hooks.OnConclude != nil {
		e.hooks.OnConclude(ctx, state)
	}
	return nil
}

// sources lists the texts citations may point into: the initial retrieval context and
// every database_query result.
func sources(state *domain.ExecutionState) []string {
	var out []string
	if state.Context != "" {
		out = append(out, state.Context)
	}
	for i, r := range state.Results {
		if i < len(state.Plan.Steps) && state.Plan.Steps[i].Type == domain.StepDatabaseQuery && r.Result != "" {
			out = append(out, r.Result)
		}
	}
	return out
}
