package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
)

const plan = `Plan: zone. #E1 = DataBase[snow load zone of "Nuremberg" city]
Plan: pitch. #E2 = Human[What is the roof pitch?]
Plan: formula. #E3 = LLM[Select the formula for #E1]
Plan: load. #E4 = WolframAlpha[Solve #E3 with pitch #E2]`

func TestGenerateMermaid_Shapes(t *testing.T) {
	p, err := compiler.Compile(plan)
	require.NoError(t, err)

	out := graph.GenerateMermaid(p, nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `E1[("#E1 database_query<br/>snow load zone of 'Nuremberg' city")]`)
	assert.Contains(t, out, `E2[/"#E2 user_query<br/>What is the roof pitch?"/]`)
	assert.Contains(t, out, `E3["#E3 LLM<br/>Select the formula for #E1"]`)
	assert.Contains(t, out, `E4[["#E4 calculation<br/>Solve #E3 with pitch #E2"]]`)
	assert.Contains(t, out, "E1 --> E3\n")
	assert.Contains(t, out, "E3 --> E4\n")
	assert.Contains(t, out, "E2 --> E4\n")
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	p, err := compiler.Compile(plan)
	require.NoError(t, err)

	state := domain.NewExecutionState("s1", "task")
	state.Plan = p
	state.Phase = domain.PhaseSuspended
	state.Cursor = 1
	state.Results = []domain.StepResult{{StepNumber: "#E1", Result: "zone 2"}}
	state.Pending = &domain.PendingQuestion{StepNumber: "#E2", Question: "What is the roof pitch?"}

	out := graph.GenerateMermaid(p, graph.OverlayFor(state))

	assert.Contains(t, out, "class E1 done;")
	assert.Contains(t, out, "class E2 current;")
	assert.NotContains(t, out, "class E3")
}

func TestGenerateMermaid_FinishedRunHasNoCurrent(t *testing.T) {
	p, err := compiler.Compile("Plan: a. #E1 = DataBase[x]")
	require.NoError(t, err)

	state := domain.NewExecutionState("s1", "task")
	state.Plan = p
	state.Cursor = 1
	state.Results = []domain.StepResult{{StepNumber: "#E1", Result: "r"}}
	state.Phase = domain.PhaseDone

	out := graph.GenerateMermaid(p, graph.OverlayFor(state))
	assert.Contains(t, out, "class E1 done;")
	assert.NotContains(t, out, "current;")
}

func TestGenerateMermaid_TruncatesLongInputs(t *testing.T) {
	long := strings.Repeat("word ", 40)
	p := domain.Plan{Steps: []domain.Step{{StepNumber: "#E1", Type: domain.StepLLM, StepInput: long}}}

	out := graph.GenerateMermaid(p, nil)
	assert.Contains(t, out, "…\"]")
	assert.NotContains(t, out, long)
}
