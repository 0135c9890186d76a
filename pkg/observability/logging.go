package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
)

// LogHooks writes an audit line for every lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	step := func(msg string) func(context.Context, *domain.StepEvent) {
		return func(ctx context.Context, e *domain.StepEvent) {
			attrs := []any{
				"session_id", e.SessionID,
				"step", e.StepNumber,
				"step_type", e.StepType.String(),
				"cursor", e.Cursor,
			}
			if e.Duration > 0 {
				attrs = append(attrs, "duration", e.Duration)
			}
			if e.Err != nil {
				logger.WarnContext(ctx, msg, append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, msg, attrs...)
		}
	}

	return domain.LifecycleHooks{
		OnStepStart:    step("step_start"),
		OnStepComplete: step("step_complete"),
		OnSuspend:      step("suspend"),
		OnResume:       step("resume"),
		OnUnresolvedDependency: func(ctx context.Context, e *domain.DependencyEvent) {
			logger.WarnContext(ctx, "unresolved_dependency", "session_id", e.SessionID, "step", e.StepNumber, "token", e.Token)
		},
		OnConclude: func(ctx context.Context, s *domain.ExecutionState) {
			logger.InfoContext(ctx, "conclude", "session_id", s.SessionID, "revision", s.Revision)
		},
	}
}
