package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
)

// RetryPolicy bounds retries of collaborator calls.
type RetryPolicy = runtime.RetryPolicy

// DefaultRetryPolicy returns three attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return runtime.DefaultRetryPolicy()
}

// Engine is the high-level entry point of the library.
// It serializes access per session and persists every run through its store.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	logger   *slog.Logger

	planner   ports.Planner
	retriever ports.Retriever
	reasoner  ports.Reasoner
	solver    ports.Solver
	store     ports.StateStore
	locker    ports.DistributedLocker
	hooks     domain.LifecycleHooks
	tracer    trace.Tracer
	retry     *RetryPolicy

	synthesisAttempts int
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithPlanner sets the model that proposes retrievals and writes plans.
func WithPlanner(p ports.Planner) Option {
	return func(e *Engine) { e.planner = p }
}

// WithRetriever sets the knowledge backend.
func WithRetriever(r ports.Retriever) Option {
	return func(e *Engine) { e.retriever = r }
}

// WithReasoner sets the reasoning model.
func WithReasoner(r ports.Reasoner) Option {
	return func(e *Engine) { e.reasoner = r }
}

// WithSolver sets the external computational engine.
func WithSolver(s ports.Solver) Option {
	return func(e *Engine) { e.solver = s }
}

// WithStore sets the checkpoint store. Default: in memory.
func WithStore(s ports.StateStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithLocker enables distributed locking of sessions shared by several processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the OpenTelemetry tracer. Default: the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithRetryPolicy bounds retries of collaborator calls.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = &p }
}

// WithSynthesisAttempts sets how many conclusions may be requested before synthesis fails.
func WithSynthesisAttempts(n int) Option {
	return func(e *Engine) { e.synthesisAttempts = n }
}

// New initializes an Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.retry != nil && eng.retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry policy needs at least one attempt, got %d", eng.retry.MaxAttempts)
	}
	if eng.synthesisAttempts < 0 {
		return nil, fmt.Errorf("synthesis attempts must not be negative, got %d", eng.synthesisAttempts)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithPlanner(eng.planner),
		runtime.WithRetriever(eng.retriever),
		runtime.WithReasoner(eng.reasoner),
		runtime.WithSolver(eng.solver),
		runtime.WithStore(eng.store),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithTracer(eng.tracer),
		runtime.WithSynthesisAttempts(eng.synthesisAttempts),
	}
	if eng.retry != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithRetryPolicy(*eng.retry))
	}
	eng.runtime = runtime.NewEngine(runtimeOpts...)

	return eng, nil
}

// Ask plans task and runs it until the run suspends on a human question or concludes.
// A session whose previous run has not finished returns domain.ErrSessionActive;
// a finished session is replaced.
// On a step failure the returned state is the last one reached, and the error is a *domain.StepError.
func (e *Engine) Ask(ctx context.Context, sessionID, task string) (*domain.ExecutionState, error) {
	if strings.TrimSpace(task) == "" {
		return nil, fmt.Errorf("task: %w", domain.ErrEmptyInput)
	}

	var state *domain.ExecutionState
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		previous, err := e.store.Load(ctx, sessionID)
		switch {
		case err == nil && !previous.Terminal():
			return fmt.Errorf("session %s is %s: %w", sessionID, previous.Phase, domain.ErrSessionActive)
		case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
			return fmt.Errorf("failed to check session %s: %w", sessionID, err)
		}

		state, err = e.runtime.Plan(ctx, sessionID, task)
		if err != nil {
			return err
		}
		state, err = e.runtime.Run(ctx, state)
		return err
	})
	return state, err
}

// Answer resumes a suspended session with the human answer to its pending question.
// stepNumber names the step being answered and is required: delivering an answer to a step
// that already has a result is a no-op that returns the current state. Any other step, or a
// session that is not waiting, returns a *domain.ResumeError wrapping domain.ErrNotSuspended.
func (e *Engine) Answer(ctx context.Context, sessionID, stepNumber, answer string) (*domain.ExecutionState, error) {
	if strings.TrimSpace(stepNumber) == "" {
		return nil, fmt.Errorf("step: %w", domain.ErrStepRequired)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("answer: %w", domain.ErrEmptyInput)
	}

	var state *domain.ExecutionState
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = e.load(ctx, sessionID)
		if err != nil {
			return err
		}

		if state.Phase != domain.PhaseSuspended || stepNumber != state.Pending.StepNumber {
			if answered(state, stepNumber) {
				e.logger.InfoContext(ctx, "answer already recorded", "session_id", sessionID, "step", stepNumber)
				return nil
			}
			return &domain.ResumeError{SessionID: sessionID, Err: domain.ErrNotSuspended}
		}

		state, err = e.runtime.Resume(ctx, state, answer)
		if err != nil {
			return err
		}
		state, err = e.runtime.Run(ctx, state)
		return err
	})
	return state, err
}

// Continue runs a session whose last run stopped on a failed or cancelled step,
// starting again from its last checkpoint.
func (e *Engine) Continue(ctx context.Context, sessionID string) (*domain.ExecutionState, error) {
	var state *domain.ExecutionState
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = e.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if state.Phase != domain.PhaseExecuting && state.Phase != domain.PhaseSynthesizing {
			return nil
		}
		state, err = e.runtime.Run(ctx, state)
		return err
	})
	return state, err
}

// State returns the checkpoint of a session.
func (e *Engine) State(ctx context.Context, sessionID string) (*domain.ExecutionState, error) {
	return e.sessions.Load(ctx, sessionID)
}

// Discard deletes a session.
func (e *Engine) Discard(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// Sessions lists the stored session ids.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// load reads a checkpoint for resumption; failures are reported as *domain.ResumeError.
func (e *Engine) load(ctx context.Context, sessionID string) (*domain.ExecutionState, error) {
	state, err := e.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrCheckpointCorrupt) {
			return nil, &domain.ResumeError{SessionID: sessionID, Err: err}
		}
		return nil, err
	}
	if err := state.Validate(); err != nil {
		return nil, &domain.ResumeError{SessionID: sessionID, Err: fmt.Errorf("%w: %v", domain.ErrCheckpointCorrupt, err)}
	}
	return state, nil
}

// answered reports whether stepNumber is a human step that already has a result.
func answered(state *domain.ExecutionState, stepNumber string) bool {
	i := state.Plan.Index(stepNumber)
	return i >= 0 && i < state.Cursor && state.Plan.Steps[i].Type == domain.StepUserQuery
}
