package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepType_Names(t *testing.T) {
	tests := []struct {
		typ  StepType
		name string
	}{
		{StepDatabaseQuery, "database_query"},
		{StepUserQuery, "user_query"},
		{StepCalculation, "calculation"},
		{StepLLM, "LLM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.typ.String())
			assert.True(t, tt.typ.Valid())

			parsed, err := ParseStepType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, parsed)
		})
	}

	assert.False(t, StepUnknown.Valid())
	assert.Equal(t, "StepType(42)", StepType(42).String())

	_, err := ParseStepType("llm")
	assert.Error(t, err, "wire names are case sensitive")
}

func TestStep_JSONUsesWireNames(t *testing.T) {
	step := Step{StepNumber: "#E2", Type: StepLLM, StepInput: "use #E1", Dependencies: []string{"#E1"}}

	data, err := json.Marshal(step)
	require.NoError(t, err)
	assert.JSONEq(t, `{"step_number":"#E2","step_type":"LLM","step_input":"use #E1","dependencies":["#E1"]}`, string(data))

	var back Step
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, step, back)

	var unknown Step
	assert.Error(t, json.Unmarshal([]byte(`{"step_type":"web_search"}`), &unknown))

	var empty Step
	require.NoError(t, json.Unmarshal([]byte(`{"step_type":""}`), &empty))
	assert.Equal(t, StepUnknown, empty.Type)
}

func TestStep_CloneAndDescribe(t *testing.T) {
	step := Step{StepNumber: "#E3", Type: StepCalculation, StepInput: "#E1 times #E2", Dependencies: []string{"#E1", "#E2"}}

	c := step.Clone()
	c.Dependencies[0] = "#E9"
	assert.Equal(t, "#E1", step.Dependencies[0])

	root := Step{StepNumber: "#E1", Type: StepDatabaseQuery, Dependencies: []string{}}
	assert.Equal(t, root, root.Clone())
	assert.NotNil(t, root.Clone().Dependencies)

	assert.Equal(t, "Step #E3 [calculation]: #E1 times #E2, depending on steps: [#E1, #E2]", step.Describe())
}

func TestPlan_IndexAndLookup(t *testing.T) {
	plan := Plan{Steps: []Step{{StepNumber: "#E1"}, {StepNumber: "#E2"}}}
	assert.Equal(t, 2, plan.Len())
	assert.Equal(t, 1, plan.Index("#E2"))
	assert.Equal(t, -1, plan.Index("#E7"))

	results := []StepResult{{StepNumber: "#E1", Result: "10"}}
	v, ok := Lookup(results, "#E1")
	assert.True(t, ok)
	assert.Equal(t, "10", v)
	_, ok = Lookup(results, "#E2")
	assert.False(t, ok)
}
