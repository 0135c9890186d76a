package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/testutils"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

func testApp(t *testing.T) *App {
	t.Helper()
	eng, err := arbor.New(
		arbor.WithPlanner(&testutils.Planner{PlanText: `Plan: ask. #E1 = Human[Which city is the site in?]`}),
		arbor.WithRetriever(&testutils.Retriever{}),
		arbor.WithReasoner(&testutils.Reasoner{}),
		arbor.WithSolver(&testutils.Solver{}),
	)
	require.NoError(t, err)
	return &App{Engine: eng, Storage: &Storage{Store: memory.NewStore()}, Logger: logging.NewNop()}
}

func TestRunSession_PrintsResumeHintOnClosedInput(t *testing.T) {
	app := testApp(t)
	out := &bytes.Buffer{}

	state, err := RunSession(context.Background(), app, "What snow load applies?", SessionOptions{
		SessionID: "s1",
		In:        strings.NewReader(""),
		Out:       out,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSuspended, state.Phase)
	assert.Contains(t, out.String(), `arbor answer s1 --step=#E1 "<answer>"`)

	// Attaching later with an answer finishes the run.
	out.Reset()
	state, err = RunSession(context.Background(), app, "", SessionOptions{
		SessionID: "s1",
		In:        strings.NewReader("Nuremberg\n"),
		Out:       out,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseDone, state.Phase)
	assert.Contains(t, out.String(), "concluded(What snow load applies?)")
}

func TestRunSession_JSONMode(t *testing.T) {
	app := testApp(t)
	out := &bytes.Buffer{}

	state, err := RunSession(context.Background(), app, "q", SessionOptions{
		SessionID: "s1",
		JSON:      true,
		In:        strings.NewReader(`{"answer":"Nuremberg"}` + "\n"),
		Out:       out,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseDone, state.Phase)
	assert.Contains(t, out.String(), `"type":"question"`)
	assert.Contains(t, out.String(), `"type":"conclusion"`)
	assert.NotContains(t, out.String(), "Resume with")
}
