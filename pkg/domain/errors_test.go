package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanError_Message(t *testing.T) {
	assert.Equal(t,
		"plan could not be built at step #E2: missing bracketed input: malformed plan",
		(&PlanError{Segment: 1, StepNumber: "#E2", Reason: "missing bracketed input", Err: ErrMalformedPlan}).Error())
	assert.Equal(t,
		"plan could not be built at segment 0: missing step number: malformed plan",
		(&PlanError{Segment: 0, Reason: "missing step number", Err: ErrMalformedPlan}).Error())
	assert.Equal(t,
		"plan could not be built: "+ErrDependencyCycle.Error(),
		(&PlanError{Segment: -1, Err: ErrDependencyCycle}).Error())
}

func TestDescribe(t *testing.T) {
	stepErr := &StepError{StepNumber: "#E4", Type: StepCalculation, Attempts: 3, Err: ErrSolverIncomplete}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plan", fmt.Errorf("ask: %w", &PlanError{Segment: -1, Err: ErrDependencyCycle}), "The plan for your question could not be built. Please rephrase and try again."},
		{"step", stepErr, "A step of the plan failed (#E4). No partial answer was produced."},
		{"resume", &ResumeError{SessionID: "s1", Err: ErrCheckpointCorrupt}, "Your session could not be resumed. Please start a new question."},
		{"other", context.DeadlineExceeded, "Something went wrong while answering your question."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}

	assert.True(t, errors.Is(stepErr, ErrSolverIncomplete))
	assert.Contains(t, stepErr.Error(), "after 3 attempt(s)")
}

func TestConclusion_Validate(t *testing.T) {
	assert.NoError(t, Conclusion{Conclusion: "0.8 kN/m2", Citations: []string{"Table 1"}}.Validate())
	assert.ErrorIs(t, Conclusion{Conclusion: "  "}.Validate(), ErrInvalidOutput)
	assert.ErrorIs(t, Conclusion{Conclusion: "x", Citations: []string{""}}.Validate(), ErrInvalidOutput)

	assert.NoError(t, Calculation{Plain: "2*3"}.Validate())
	assert.ErrorIs(t, Calculation{Formal: `2\cdot3`}.Validate(), ErrInvalidOutput)
}

func TestRetrievalRequest_Validate(t *testing.T) {
	assert.NoError(t, RetrievalRequest{Query: "q"}.Validate())
	assert.NoError(t, RetrievalRequest{Query: "q", DataType: DataTable, Category: CategorySnowLoads}.Validate())
	assert.Error(t, RetrievalRequest{}.Validate())
	assert.Error(t, RetrievalRequest{Query: "q", DataType: "Image"}.Validate())
	assert.Error(t, RetrievalRequest{Query: "q", Category: "EN 1991"}.Validate())
}
