package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionActive is returned when a new task is submitted to a session that has not finished.
var ErrSessionActive = errors.New("session has an unfinished run")

// ErrEmptyInput is returned when a task or answer is blank.
var ErrEmptyInput = errors.New("input is empty")

// ErrStepRequired is returned when an answer does not name the step it answers.
var ErrStepRequired = errors.New("answer must name the step it answers")

// ErrMalformedPlan is returned when a plan segment lacks a step number, type keyword or bracketed input.
var ErrMalformedPlan = errors.New("malformed plan")

// ErrDependencyCycle is returned when no topological order exists.
var ErrDependencyCycle = errors.New("the steps contain a cycle, so no valid execution order exists")

// ErrNotSuspended is returned when an answer is delivered to a run that is not waiting for one.
var ErrNotSuspended = errors.New("run is not waiting for an answer")

// ErrCheckpointCorrupt is returned when a stored state cannot be decoded or violates its invariants.
var ErrCheckpointCorrupt = errors.New("checkpoint is corrupt")

// ErrSolverIncomplete is returned when an external solver run ends in a status other than completed.
var ErrSolverIncomplete = errors.New("solver run did not complete")

// ErrInvalidOutput is returned when a model answer fails structured-output validation.
var ErrInvalidOutput = errors.New("model output failed validation")

// PlanError reports why a plan could not be built. No step has executed when it is returned.
type PlanError struct {
	// Segment is the zero-based index of the offending "Plan:" segment, or -1.
	Segment    int
	StepNumber string
	Reason     string
	Err        error
}

func (e *PlanError) Error() string {
	where := ""
	switch {
	case e.StepNumber != "":
		where = " at step " + e.StepNumber
	case e.Segment >= 0:
		where = fmt.Sprintf(" at segment %d", e.Segment)
	}
	if e.Reason == "" {
		return fmt.Sprintf("plan could not be built%s: %v", where, e.Err)
	}
	return fmt.Sprintf("plan could not be built%s: %s: %v", where, e.Reason, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// StepError reports a step that failed after its retries were exhausted.
type StepError struct {
	StepNumber string
	Type       StepType
	Attempts   int
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s) failed after %d attempt(s): %v", e.StepNumber, e.Type, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ResumeError reports a session that could not be resumed.
type ResumeError struct {
	SessionID string
	Err       error
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("could not resume session %q: %v", e.SessionID, e.Err)
}

func (e *ResumeError) Unwrap() error { return e.Err }

// Describe maps an engine error to the message shown to the end user.
func Describe(err error) string {
	var planErr *PlanError
	var stepErr *StepError
	var resumeErr *ResumeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &planErr):
		return "The plan for your question could not be built. Please rephrase and try again."
	case errors.As(err, &stepErr):
		return fmt.Sprintf("A step of the plan failed (%s). No partial answer was produced.", stepErr.StepNumber)
	case errors.As(err, &resumeErr):
		return "Your session could not be resumed. Please start a new question."
	default:
		return "Something went wrong while answering your question."
	}
}
