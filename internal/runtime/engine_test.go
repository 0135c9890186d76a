package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/testutils"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

const twoStepPlan = "Plan: find zone. #E1 = DataBase[zone of city X]\nPlan: compute load. #E2 = WolframAlpha[f(#E1)]"

// fivePlan suspends at cursor 2.
const fivePlan = `Plan: look up. #E1 = DataBase[zone of city X]
Plan: explain. #E2 = LLM[explain #E1]
Plan: ask. #E3 = Human[What is the roof pitch for #E2?]
Plan: reason. #E4 = LLM[combine #E3]
Plan: compute. #E5 = WolframAlpha[load(#E1, #E4)]`

type fixture struct {
	retriever *testutils.Retriever
	reasoner  *testutils.Reasoner
	solver    *testutils.Solver
	planner   *testutils.Planner
	store     *memory.Store
	engine    *runtime.Engine
	events    *recorder
}

type recorder struct {
	mu         sync.Mutex
	types      []domain.EventType
	unresolved []string
	concluded  int
}

func (r *recorder) step(_ context.Context, e *domain.StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart:    r.step,
		OnStepComplete: r.step,
		OnSuspend:      r.step,
		OnResume:       r.step,
		OnUnresolvedDependency: func(_ context.Context, e *domain.DependencyEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.unresolved = append(r.unresolved, e.Token)
		},
		OnConclude: func(context.Context, *domain.ExecutionState) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.concluded++
		},
	}
}

func newFixture(opts ...runtime.EngineOption) *fixture {
	f := &fixture{
		retriever: &testutils.Retriever{},
		reasoner:  &testutils.Reasoner{},
		solver:    &testutils.Solver{},
		planner:   &testutils.Planner{PlanText: twoStepPlan},
		store:     memory.NewStore(),
		events:    &recorder{},
	}
	base := []runtime.EngineOption{
		runtime.WithRetriever(f.retriever),
		runtime.WithReasoner(f.reasoner),
		runtime.WithSolver(f.solver),
		runtime.WithPlanner(f.planner),
		runtime.WithStore(f.store),
		runtime.WithLifecycleHooks(f.events.hooks()),
		runtime.WithRetryPolicy(fastPolicy(3)),
	}
	f.engine = runtime.NewEngine(append(base, opts...)...)
	return f
}

func TestEngine_TwoStepRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state, err := f.engine.Prepare(ctx, "s1", "snow load in city X?", "", twoStepPlan)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseExecuting, state.Phase)

	state, err = f.engine.Run(ctx, state)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseDone, state.Phase)
	assert.Equal(t, 2, state.Cursor)
	require.Len(t, state.Results, 2)
	assert.Equal(t, "retrieved(zone of city X)", state.Results[0].Result)
	assert.Equal(t, "#E1 = retrieved(zone of city X)\n", f.reasoner.Variables[0])
	assert.Equal(t, []string{"f(#E1) where #E1 = retrieved(zone of city X)"}, f.solver.Problems)
	require.NotNil(t, state.Conclusion)
	assert.Equal(t, "concluded(snow load in city X?)", state.Conclusion.Conclusion)
	assert.Equal(t, 1, f.events.concluded)

	stored, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state, stored)
	// prepare, two steps, synthesizing, done
	assert.Equal(t, 5, stored.Revision)
}

func TestEngine_SuspendAndResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state, err := f.engine.Prepare(ctx, "s1", "task", "", fivePlan)
	require.NoError(t, err)
	state, err = f.engine.Run(ctx, state)
	require.NoError(t, err)

	t.Run("Suspends At Cursor Two", func(t *testing.T) {
		assert.Equal(t, domain.PhaseSuspended, state.Phase)
		assert.Equal(t, 2, state.Cursor)
		require.NotNil(t, state.Pending)
		assert.Equal(t, "#E3", state.Pending.StepNumber)
		assert.Equal(t, "What is the roof pitch for answer(explain retrieved(zone of city X))?", state.Pending.Question)

		stored, err := f.store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseSuspended, stored.Phase)
		assert.Equal(t, 2, stored.Cursor)
		assert.NoError(t, stored.Validate())
	})

	t.Run("Resume Advances By One", func(t *testing.T) {
		loaded, err := f.store.Load(ctx, "s1")
		require.NoError(t, err)

		resumed, err := f.engine.Resume(ctx, loaded, "30 degrees")
		require.NoError(t, err)
		assert.Equal(t, 3, resumed.Cursor)
		assert.Equal(t, domain.PhaseExecuting, resumed.Phase)
		assert.Nil(t, resumed.Pending)
		assert.Equal(t, "extracted(30 degrees)", resumed.Results[2].Result)

		t.Run("Redelivery Is Rejected Without Mutation", func(t *testing.T) {
			before := resumed.Snapshot()
			again, err := f.engine.Resume(ctx, resumed, "30 degrees")
			assert.ErrorIs(t, err, domain.ErrNotSuspended)
			var re *domain.ResumeError
			assert.True(t, errors.As(err, &re))
			assert.Equal(t, before, again)
		})

		final, err := f.engine.Run(ctx, resumed)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseDone, final.Phase)
		assert.Equal(t, 5, final.Cursor)
		assert.Len(t, f.reasoner.Extractions, 1)
	})

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	assert.Contains(t, f.events.types, domain.EventSuspend)
	assert.Contains(t, f.events.types, domain.EventResume)
}

func TestEngine_ResumeRejectsCorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state, err := f.engine.Prepare(ctx, "s1", "task", "", fivePlan)
	require.NoError(t, err)
	state, err = f.engine.Run(ctx, state)
	require.NoError(t, err)

	state.Pending.StepNumber = "#E1"
	_, err = f.engine.Resume(ctx, state, "answer")
	assert.ErrorIs(t, err, domain.ErrCheckpointCorrupt)
	assert.Empty(t, f.reasoner.Extractions)
}

func TestEngine_ResumeFailureKeepsSuspension(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.reasoner.ExtractErr = errors.New("model down")

	state, err := f.engine.Prepare(ctx, "s1", "task", "", fivePlan)
	require.NoError(t, err)
	state, err = f.engine.Run(ctx, state)
	require.NoError(t, err)

	state, err = f.engine.Resume(ctx, state, "30 degrees")
	var se *domain.StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "#E3", se.StepNumber)
	assert.Equal(t, 3, se.Attempts)
	assert.Equal(t, domain.PhaseSuspended, state.Phase)
	assert.Equal(t, 2, state.Cursor)
}

func TestEngine_CancellationDoesNotAdvance(t *testing.T) {
	f := newFixture()
	f.reasoner.Block = true

	state, err := f.engine.Prepare(context.Background(), "s1", "task", "", "Plan: a. #E1 = DataBase[x]\nPlan: b. #E2 = LLM[use #E1]")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	state, err = f.engine.Run(ctx, state)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var se *domain.StepError
	assert.False(t, errors.As(err, &se), "cancellation is not a step failure")

	assert.Equal(t, 1, state.Cursor)
	assert.Len(t, state.Results, 1)
	assert.Equal(t, domain.PhaseExecuting, state.Phase)

	stored, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Cursor)
	assert.Len(t, f.reasoner.Instructions, 1, "cancelled call is not retried")
}

// phaseFailingStore refuses to save checkpoints in one phase.
type phaseFailingStore struct {
	ports.StateStore
	mu     sync.Mutex
	refuse domain.Phase
}

func (s *phaseFailingStore) Save(ctx context.Context, sessionID string, state *domain.ExecutionState) error {
	s.mu.Lock()
	refuse := s.refuse
	s.mu.Unlock()
	if state.Phase == refuse {
		return errors.New("disk full")
	}
	return s.StateStore.Save(ctx, sessionID, state)
}

func (s *phaseFailingStore) allow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = ""
}

func TestEngine_FailedCheckpointKeepsDurableState(t *testing.T) {
	ctx := context.Background()

	t.Run("Suspension", func(t *testing.T) {
		store := &phaseFailingStore{StateStore: memory.NewStore(), refuse: domain.PhaseSuspended}
		f := newFixture(runtime.WithStore(store))

		state, err := f.engine.Prepare(ctx, "s1", "task", "", fivePlan)
		require.NoError(t, err)
		state, err = f.engine.Run(ctx, state)
		require.ErrorContains(t, err, "disk full")

		assert.Equal(t, domain.PhaseExecuting, state.Phase)
		assert.Nil(t, state.Pending)
		assert.Equal(t, 2, state.Cursor)
		assert.Len(t, state.Transcript, 1)

		stored, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, stored, state)

		f.events.mu.Lock()
		assert.NotContains(t, f.events.types, domain.EventSuspend)
		f.events.mu.Unlock()

		store.allow()
		state, err = f.engine.Run(ctx, state)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseSuspended, state.Phase)
		assert.Equal(t, "#E3", state.Pending.StepNumber)
		assert.Len(t, state.Transcript, 2)
	})

	t.Run("Conclusion", func(t *testing.T) {
		store := &phaseFailingStore{StateStore: memory.NewStore(), refuse: domain.PhaseDone}
		f := newFixture(runtime.WithStore(store))

		state, err := f.engine.Prepare(ctx, "s1", "task", "", twoStepPlan)
		require.NoError(t, err)
		state, err = f.engine.Run(ctx, state)
		require.ErrorContains(t, err, "disk full")

		assert.Equal(t, domain.PhaseSynthesizing, state.Phase)
		assert.Nil(t, state.Conclusion)
		assert.Len(t, state.Transcript, 1)
		assert.Zero(t, f.events.concluded)

		stored, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, stored, state)

		store.allow()
		state, err = f.engine.Run(ctx, state)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseDone, state.Phase)
		require.NotNil(t, state.Conclusion)
		assert.Equal(t, 1, f.events.concluded)
	})
}

func TestEngine_ExhaustedCursorSynthesizes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state := domain.NewExecutionState("s1", "task")
	state.Plan = domain.Plan{Steps: []domain.Step{
		{StepNumber: "#E1", Type: domain.StepDatabaseQuery, StepInput: "x", Dependencies: []string{}},
	}}
	state.Results = []domain.StepResult{{StepNumber: "#E1", Result: "done already"}}
	state.Cursor = 1
	state.Context = "ctx"
	state.Phase = domain.PhaseExecuting

	state, err := f.engine.Run(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseDone, state.Phase)
	assert.Zero(t, f.retriever.Calls())
	require.Len(t, f.reasoner.Requests, 1)
	assert.Equal(t, []string{"ctx", "done already"}, f.reasoner.Requests[0].Sources)
}

func TestEngine_StepErrorAfterRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.retriever.Failures = 10
	f.retriever.Err = errors.New("backend unavailable")

	state, err := f.engine.Prepare(ctx, "s1", "task", "", twoStepPlan)
	require.NoError(t, err)

	state, err = f.engine.Run(ctx, state)
	var se *domain.StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "#E1", se.StepNumber)
	assert.Equal(t, domain.StepDatabaseQuery, se.Type)
	assert.Equal(t, 3, se.Attempts)
	assert.Equal(t, 0, state.Cursor)
	assert.Equal(t, 3, f.retriever.Calls())
}

func TestEngine_SolverIncomplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.solver.Err = domain.ErrSolverIncomplete

	state, err := f.engine.Prepare(ctx, "s1", "task", "", twoStepPlan)
	require.NoError(t, err)

	state, err = f.engine.Run(ctx, state)
	assert.ErrorIs(t, err, domain.ErrSolverIncomplete)
	var se *domain.StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "#E2", se.StepNumber)
	assert.Len(t, f.solver.Problems, 1, "incomplete runs are not retried")
	assert.Equal(t, 1, state.Cursor)
}

func TestEngine_UnresolvedDependencyIsObservable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state := domain.NewExecutionState("s1", "task")
	state.Plan = domain.Plan{Steps: []domain.Step{
		{StepNumber: "#E2", Type: domain.StepLLM, StepInput: "use #E9", Dependencies: []string{"#E9"}},
	}}
	state.Phase = domain.PhaseExecuting

	_, err := f.engine.Run(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"use #E9"}, f.reasoner.Instructions)
	assert.Equal(t, []string{"#E9"}, f.events.unresolved)
}

func TestEngine_UnknownStepTypeIsMalformed(t *testing.T) {
	f := newFixture()
	state := domain.NewExecutionState("s1", "task")
	state.Plan = domain.Plan{Steps: []domain.Step{{StepNumber: "#E1", StepInput: "x", Dependencies: []string{}}}}
	state.Phase = domain.PhaseExecuting

	_, err := f.engine.Run(context.Background(), state)
	assert.ErrorIs(t, err, domain.ErrMalformedPlan)
	assert.Equal(t, 0, state.Cursor)
}

func TestEngine_SynthesisRetriesInvalidOutput(t *testing.T) {
	ctx := context.Background()

	t.Run("Recovers", func(t *testing.T) {
		f := newFixture()
		f.reasoner.Conclusions = []domain.Conclusion{{}, {Conclusion: "42 kN", Citations: []string{"DIN 1991-1-3: 4.1"}}}

		state, err := f.engine.Prepare(ctx, "s1", "task", "", twoStepPlan)
		require.NoError(t, err)
		state, err = f.engine.Run(ctx, state)
		require.NoError(t, err)
		assert.Equal(t, "42 kN", state.Conclusion.Conclusion)
		last := state.Transcript[len(state.Transcript)-1]
		assert.Equal(t, "References: DIN 1991-1-3: 4.1", last.Content)
	})

	t.Run("Gives Up", func(t *testing.T) {
		f := newFixture(runtime.WithSynthesisAttempts(2))
		f.reasoner.Conclusions = []domain.Conclusion{{}, {}, {Conclusion: "too late"}}

		state, err := f.engine.Prepare(ctx, "s1", "task", "", twoStepPlan)
		require.NoError(t, err)
		state, err = f.engine.Run(ctx, state)
		assert.ErrorIs(t, err, domain.ErrInvalidOutput)
		var se *domain.StepError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, runtime.ConclusionStep, se.StepNumber)
		assert.Equal(t, 2, se.Attempts)
		assert.Equal(t, domain.PhaseSynthesizing, state.Phase)
	})
}

func TestEngine_Plan(t *testing.T) {
	ctx := context.Background()

	t.Run("Initial Retrieval Feeds Planner", func(t *testing.T) {
		f := newFixture()
		f.planner.Searches = []domain.RetrievalRequest{{Query: "snow zones"}, {Query: "roof shapes"}}

		state, err := f.engine.Plan(ctx, "s1", "task")
		require.NoError(t, err)
		assert.Equal(t, "retrieved(snow zones)retrieved(roof shapes)", state.Context)
		assert.Equal(t, []string{state.Context}, f.planner.Contexts)
		assert.Equal(t, 2, state.Plan.Len())
		assert.Equal(t, []domain.Message{{Role: domain.RoleHuman, Content: "task"}}, state.Transcript)
	})

	t.Run("Malformed Plan Executes Nothing", func(t *testing.T) {
		f := newFixture()
		f.planner.PlanText = "Plan: a. #E1 = LLM[use #E2]\nPlan: b. #E2 = LLM[use #E1]"

		_, err := f.engine.Plan(ctx, "s1", "task")
		assert.ErrorIs(t, err, domain.ErrDependencyCycle)
		var pe *domain.PlanError
		assert.True(t, errors.As(err, &pe))

		_, err = f.store.Load(ctx, "s1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.Empty(t, f.reasoner.Instructions)
	})

	t.Run("Requires Planner", func(t *testing.T) {
		e := runtime.NewEngine()
		_, err := e.Plan(ctx, "s1", "task")
		assert.ErrorIs(t, err, runtime.ErrNotConfigured)
	})
}
