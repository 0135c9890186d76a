package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
)

// Engine is the part of *arbor.Engine the runner drives.
type Engine interface {
	Ask(ctx context.Context, sessionID, task string) (*domain.ExecutionState, error)
	Answer(ctx context.Context, sessionID, stepNumber, answer string) (*domain.ExecutionState, error)
}

// Runner loops over questions until a run concludes, fails or loses its input.
type Runner struct {
	handler IOHandler
	logger  *slog.Logger
	signals *SignalManager
}

// Option configures a Runner.
type Option func(*Runner)

// WithHandler sets the IO strategy. The default is a TextHandler on stdin and stdout.
func WithHandler(h IOHandler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSignals lets the runner tell a Ctrl+C apart from a closed input.
func WithSignals(sm *SignalManager) Option {
	return func(r *Runner) {
		r.signals = sm
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run starts task in sessionID and drives it to its end.
//
// When the input closes while a question is pending, Run returns the suspended
// state and a nil error: the checkpoint is already stored and the session can be
// answered later. Engine errors are reported through the handler and returned.
func (r *Runner) Run(ctx context.Context, eng Engine, sessionID, task string) (*domain.ExecutionState, error) {
	state, err := eng.Ask(ctx, sessionID, task)
	return r.drive(ctx, eng, sessionID, state, err)
}

// Attach drives an already suspended state, as loaded from the store.
func (r *Runner) Attach(ctx context.Context, eng Engine, state *domain.ExecutionState) (*domain.ExecutionState, error) {
	return r.drive(ctx, eng, state.SessionID, state, nil)
}

func (r *Runner) drive(ctx context.Context, eng Engine, sessionID string, state *domain.ExecutionState, err error) (*domain.ExecutionState, error) {
	for {
		if err != nil {
			if ferr := r.handler.Fail(ctx, err); ferr != nil {
				r.logger.Warn("could not report failure", "session_id", sessionID, "error", ferr)
			}
			return state, err
		}

		switch state.Phase {
		case domain.PhaseDone:
			return state, r.handler.Conclude(ctx, state)
		case domain.PhaseSuspended:
		default:
			// Executing or synthesizing after an interrupted run; nothing to answer here.
			r.logger.Info("session is not waiting for input", "session_id", sessionID, "phase", state.Phase)
			return state, nil
		}

		answer, rerr := r.handler.Ask(ctx, state)
		if rerr != nil {
			return r.detach(ctx, state, rerr)
		}
		state, err = eng.Answer(ctx, sessionID, state.Pending.StepNumber, answer)
	}
}

// detach ends the loop on a read failure, leaving the session suspended.
func (r *Runner) detach(ctx context.Context, state *domain.ExecutionState, err error) (*domain.ExecutionState, error) {
	if r.signals != nil && errors.Is(err, io.EOF) {
		r.signals.CheckRace()
		if r.signals.Interrupted() {
			err = context.Canceled
		}
	}

	switch {
	case errors.Is(err, io.EOF):
		r.logger.Info("input closed, session left suspended", "session_id", state.SessionID, "step_number", pendingStep(state))
		return state, nil
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		r.logger.Info("interrupted, session left suspended", "session_id", state.SessionID, "step_number", pendingStep(state))
		return state, context.Canceled
	default:
		return state, err
	}
}

func pendingStep(state *domain.ExecutionState) string {
	if state.Pending == nil {
		return ""
	}
	return state.Pending.StepNumber
}
