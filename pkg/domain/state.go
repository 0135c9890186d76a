package domain

import (
	"fmt"
	"slices"
)

// Phase defines the current mode of the dispatcher state machine.
type Phase string

const (
	PhaseInitializing Phase = "initializing" // Plan not built yet
	PhaseExecuting    Phase = "executing"    // Cursor walking the sorted steps
	PhaseSuspended    Phase = "suspended"    // Waiting for a human answer
	PhaseSynthesizing Phase = "synthesizing" // All steps done, conclusion pending
	PhaseDone         Phase = "done"         // Sink state
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PendingQuestion is the open human question of a suspended run.
type PendingQuestion struct {
	StepNumber string `json:"step_number"`
	Question   string `json:"question"`
}

// ExecutionState is the unit of persistence and resumption.
// It is the only thing that must survive a suspension boundary.
type ExecutionState struct {
	SessionID string `json:"session_id"`

	// Task is the original question handed to the planner.
	Task string `json:"task"`

	// Context is the retrieval text gathered before planning.
	Context string `json:"context"`

	Plan Plan `json:"plan"`

	// Cursor is the zero-based index of the next step to execute.
	Cursor int `json:"cursor"`

	// Results is append-only; len(Results) == Cursor.
	Results []StepResult `json:"step_results"`

	Transcript []Message `json:"transcript,omitempty"`

	Phase Phase `json:"phase"`

	// Pending is set only while Phase == PhaseSuspended.
	Pending *PendingQuestion `json:"pending,omitempty"`

	Conclusion *Conclusion `json:"conclusion,omitempty"`

	// Revision increases by one on every checkpoint write.
	Revision int `json:"revision"`

	// Sealed holds an encrypted copy of the state when written by the encryption middleware.
	Sealed string `json:"sealed,omitempty"`
}

// NewExecutionState creates a clean state for a task, before planning.
func NewExecutionState(sessionID, task string) *ExecutionState {
	return &ExecutionState{
		SessionID: sessionID,
		Task:      task,
		Phase:     PhaseInitializing,
		Results:   []StepResult{},
	}
}

// CurrentStep returns the step under the cursor, if any.
func (s *ExecutionState) CurrentStep() (Step, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Plan.Steps) {
		return Step{}, false
	}
	return s.Plan.Steps[s.Cursor], true
}

// Exhausted reports whether the cursor reached the end of the plan.
func (s *ExecutionState) Exhausted() bool {
	return s.Cursor == len(s.Plan.Steps)
}

// Terminal reports whether the run is finished.
func (s *ExecutionState) Terminal() bool {
	return s.Phase == PhaseDone
}

// Snapshot deep-copies the state so stores and callers never share slices with the live run.
func (s *ExecutionState) Snapshot() *ExecutionState {
	if s == nil {
		return nil
	}
	c := *s
	c.Plan = s.Plan.Clone()
	c.Results = slices.Clone(s.Results)
	c.Transcript = slices.Clone(s.Transcript)
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	if s.Conclusion != nil {
		cc := *s.Conclusion
		cc.Citations = slices.Clone(s.Conclusion.Citations)
		c.Conclusion = &cc
	}
	return &c
}

// Validate checks the structural invariants of a state reconstituted from a checkpoint.
func (s *ExecutionState) Validate() error {
	switch s.Phase {
	case PhaseInitializing, PhaseExecuting, PhaseSuspended, PhaseSynthesizing, PhaseDone:
	default:
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	if s.Cursor < 0 || s.Cursor > len(s.Plan.Steps) {
		return fmt.Errorf("cursor %d out of range [0,%d]", s.Cursor, len(s.Plan.Steps))
	}
	if len(s.Results) != s.Cursor {
		return fmt.Errorf("cursor %d does not match %d recorded results", s.Cursor, len(s.Results))
	}
	for i, r := range s.Results {
		if r.StepNumber != s.Plan.Steps[i].StepNumber {
			return fmt.Errorf("result %d belongs to %s, expected %s", i, r.StepNumber, s.Plan.Steps[i].StepNumber)
		}
	}
	if s.Phase == PhaseSuspended {
		step, ok := s.CurrentStep()
		if !ok || s.Pending == nil {
			return fmt.Errorf("suspended state has no pending question")
		}
		if step.Type != StepUserQuery || step.StepNumber != s.Pending.StepNumber {
			return fmt.Errorf("pending question %s does not match step %s", s.Pending.StepNumber, step.StepNumber)
		}
	}
	return nil
}
