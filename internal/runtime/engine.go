package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// ErrNotConfigured is returned when a step needs a collaborator the engine was built without.
var ErrNotConfigured = errors.New("collaborator not configured")

// Engine is the plan dispatcher. It walks the cursor over the sorted steps of an
// ExecutionState, suspends on user_query steps and synthesizes the conclusion.
// The engine holds no per-session state; everything lives in the ExecutionState it is handed.
type Engine struct {
	planner   ports.Planner
	retriever ports.Retriever
	reasoner  ports.Reasoner
	solver    ports.Solver
	store     ports.StateStore

	hooks             domain.LifecycleHooks
	logger            *slog.Logger
	tracer            trace.Tracer
	retry             RetryPolicy
	synthesisAttempts int
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithPlanner sets the model that proposes retrievals and writes plans.
func WithPlanner(p ports.Planner) EngineOption {
	return func(e *Engine) { e.planner = p }
}

// WithRetriever sets the knowledge backend used by database_query steps.
func WithRetriever(r ports.Retriever) EngineOption {
	return func(e *Engine) { e.retriever = r }
}

// WithReasoner sets the reasoning model.
func WithReasoner(r ports.Reasoner) EngineOption {
	return func(e *Engine) { e.reasoner = r }
}

// WithSolver sets the external computational engine used by calculation steps.
func WithSolver(s ports.Solver) EngineOption {
	return func(e *Engine) { e.solver = s }
}

// WithStore sets where checkpoints are written. Without a store the engine runs in memory only.
func WithStore(s ports.StateStore) EngineOption {
	return func(e *Engine) { e.store = s }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer used for run and step spans.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithRetryPolicy bounds retries of collaborator calls.
func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(e *Engine) { e.retry = p }
}

// WithSynthesisAttempts sets how many conclusions may be requested before synthesis fails.
func WithSynthesisAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.synthesisAttempts = n
		}
	}
}

// NewEngine creates an engine. Collaborators are optional; a step whose collaborator is missing
// fails with ErrNotConfigured.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:            logging.NewNop(),
		tracer:            otel.Tracer("github.com/aretw0/arbor/internal/runtime"),
		retry:             DefaultRetryPolicy(),
		synthesisAttempts: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan builds a fresh state for task: it gathers the initial retrieval context, asks the planner
// for a plan and compiles it. The state is checkpointed in the executing phase.
func (e *Engine) Plan(ctx context.Context, sessionID, task string) (*domain.ExecutionState, error) {
	if e.planner == nil {
		return nil, fmt.Errorf("planner: %w", ErrNotConfigured)
	}

	ctx, span := e.tracer.Start(ctx, "arbor.plan", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	var requests []domain.RetrievalRequest
	if _, err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		requests, err = e.planner.SearchQueries(ctx, task)
		return err
	}); err != nil {
		return nil, fail(span, fmt.Errorf("failed to propose search queries: %w", err))
	}

	var sb strings.Builder
	for _, req := range requests {
		text, err := e.retrieve(ctx, req)
		if err != nil {
			return nil, fail(span, fmt.Errorf("initial retrieval %q failed: %w", req.Query, err))
		}
		sb.WriteString(text)
	}
	retrievalContext := sb.String()

	var planText string
	if _, err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		planText, err = e.planner.Plan(ctx, task, retrievalContext)
		return err
	}); err != nil {
		return nil, fail(span, fmt.Errorf("failed to create plan: %w", err))
	}

	state, err := e.Prepare(ctx, sessionID, task, retrievalContext, planText)
	if err != nil {
		return nil, fail(span, err)
	}
	return state, nil
}

// Prepare compiles planText into a fresh executing state and checkpoints it.
// No step runs when the plan cannot be built; the returned error is a *domain.PlanError.
func (e *Engine) Prepare(ctx context.Context, sessionID, task, retrievalContext, planText string) (*domain.ExecutionState, error) {
	plan, err := compiler.Compile(planText)
	if err != nil {
		e.logger.WarnContext(ctx, "plan rejected", "session_id", sessionID, "err", err)
		return nil, err
	}

	state := domain.NewExecutionState(sessionID, task)
	state.Context = retrievalContext
	state.Plan = plan
	state.Transcript = append(state.Transcript, domain.Message{Role: domain.RoleHuman, Content: task})
	state.Phase = domain.PhaseExecuting

	e.logger.InfoContext(ctx, "plan built", "session_id", sessionID, "steps", plan.Len())
	if err := e.checkpoint(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Run drives the state machine until the run suspends, finishes or fails.
// The state is mutated in place and returned. A failed or cancelled step leaves the cursor
// where it was, so the last checkpoint stays the durable state.
func (e *Engine) Run(ctx context.Context, state *domain.ExecutionState) (*domain.ExecutionState, error) {
	ctx, span := e.tracer.Start(ctx, "arbor.run", trace.WithAttributes(
		attribute.String("session_id", state.SessionID),
		attribute.Int("cursor", state.Cursor),
		attribute.Int("steps", state.Plan.Len()),
	))
	defer span.End()

	for {
		if err := ctx.Err(); err != nil {
			return state, fail(span, err)
		}

		switch state.Phase {
		case domain.PhaseExecuting:
			if state.Exhausted() {
				if err := e.commit(ctx, state, func(s *domain.ExecutionState) {
					s.Phase = domain.PhaseSynthesizing
				}); err != nil {
					return state, fail(span, err)
				}
				continue
			}
			if err := e.step(ctx, state); err != nil {
				return state, fail(span, err)
			}

		case domain.PhaseSynthesizing:
			if err := e.synthesize(ctx, state); err != nil {
				return state, fail(span, err)
			}

		case domain.PhaseSuspended, domain.PhaseDone:
			span.SetAttributes(attribute.String("phase", string(state.Phase)))
			return state, nil

		case domain.PhaseInitializing:
			return state, fail(span, fmt.Errorf("session %s has no plan yet", state.SessionID))

		default:
			return state, fail(span, fmt.Errorf("%w: unknown phase %q", domain.ErrCheckpointCorrupt, state.Phase))
		}
	}
}

// step executes the step under the cursor. It is an exhaustive dispatch over StepType.
func (e *Engine) step(ctx context.Context, state *domain.ExecutionState) error {
	step, _ := state.CurrentStep()
	logger := e.logger.With("session_id", state.SessionID, "step", step.StepNumber, "step_type", step.Type.String())

	ctx, span := e.tracer.Start(ctx, "arbor.step", trace.WithAttributes(
		attribute.String("step", step.StepNumber),
		attribute.String("step_type", step.Type.String()),
	))
	defer span.End()

	e.emitStep(ctx, e.hooks.OnStepStart, domain.EventStepStart, state, step, 0, nil)
	start := time.Now()

	var (
		result   string
		attempts int
		err      error
	)
	switch step.Type {
	case domain.StepDatabaseQuery:
		result, attempts, err = e.database(ctx, state, step)
	case domain.StepLLM:
		result, attempts, err = e.reason(ctx, state, step)
	case domain.StepCalculation:
		result, attempts, err = e.calculate(ctx, state, step)
	case domain.StepUserQuery:
		return e.suspend(ctx, state, step)
	default:
		return &domain.PlanError{
			Segment:    -1,
			StepNumber: step.StepNumber,
			Reason:     fmt.Sprintf("no handler for step type %q", step.Type),
			Err:        domain.ErrMalformedPlan,
		}
	}

	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			logger.InfoContext(ctx, "step interrupted", "err", err)
			err = fmt.Errorf("step %s interrupted: %w", step.StepNumber, ctx.Err())
		} else {
			logger.ErrorContext(ctx, "step failed", "attempts", attempts, "err", err)
			err = &domain.StepError{StepNumber: step.StepNumber, Type: step.Type, Attempts: attempts, Err: err}
		}
		e.emitStep(ctx, e.hooks.OnStepComplete, domain.EventStepComplete, state, step, elapsed, err)
		return fail(span, err)
	}

	if err := e.commit(ctx, state, func(s *domain.ExecutionState) {
		s.Results = append(s.Results, domain.StepResult{StepNumber: step.StepNumber, Result: result})
		s.Cursor++
	}); err != nil {
		return fail(span, err)
	}
	logger.DebugContext(ctx, "step complete", "duration", elapsed, "attempts", attempts)
	e.emitStep(ctx, e.hooks.OnStepComplete, domain.EventStepComplete, state, step, elapsed, nil)
	return nil
}

// suspend records the open question and checkpoints before control returns to the caller.
func (e *Engine) suspend(ctx context.Context, state *domain.ExecutionState, step domain.Step) error {
	question := e.resolveInline(ctx, state, step)

	if err := e.commit(ctx, state, func(s *domain.ExecutionState) {
		s.Phase = domain.PhaseSuspended
		s.Pending = &domain.PendingQuestion{StepNumber: step.StepNumber, Question: question}
		s.Transcript = append(s.Transcript, domain.Message{Role: domain.RoleAssistant, Content: question})
	}); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "run suspended", "session_id", state.SessionID, "step", step.StepNumber)
	e.emitStep(ctx, e.hooks.OnSuspend, domain.EventSuspend, state, step, 0, nil)
	return nil
}

// commit applies change and checkpoints the result. A failed checkpoint restores the
// state as it was, so the live run never gets ahead of its last durable copy.
func (e *Engine) commit(ctx context.Context, state *domain.ExecutionState, change func(*domain.ExecutionState)) error {
	prev := state.Snapshot()
	change(state)
	if err := e.checkpoint(ctx, state); err != nil {
		*state = *prev
		return err
	}
	return nil
}

// checkpoint bumps the revision and persists a copy of the state.
// The write is not cancelled with ctx so a completed step is never lost.
func (e *Engine) checkpoint(ctx context.Context, state *domain.ExecutionState) error {
	state.Revision++
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(context.WithoutCancel(ctx), state.SessionID, state); err != nil {
		state.Revision--
		return fmt.Errorf("checkpoint of session %s failed: %w", state.SessionID, err)
	}
	return nil
}

func (e *Engine) emitStep(ctx context.Context, hook func(context.Context, *domain.StepEvent), typ domain.EventType, state *domain.ExecutionState, step domain.Step, elapsed time.Duration, err error) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: typ, SessionID: state.SessionID},
		StepNumber: step.StepNumber,
		StepType:   step.Type,
		Cursor:     state.Cursor,
		Duration:   elapsed,
		Err:        err,
	})
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
