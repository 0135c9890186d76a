package domain

import (
	"fmt"
	"slices"
	"strings"
)

// StepType is the closed set of work a plan step can perform.
type StepType uint8

const (
	// StepUnknown marks a segment whose type keyword could not be recognized.
	StepUnknown StepType = iota
	// StepDatabaseQuery retrieves text from the retrieval backend.
	StepDatabaseQuery
	// StepUserQuery asks the human and suspends the run.
	StepUserQuery
	// StepCalculation formulates a problem and hands it to the external solver.
	StepCalculation
	// StepLLM asks the reasoning model, grounded on the retrieval context.
	StepLLM
)

var stepTypeNames = [...]string{
	StepUnknown:       "",
	StepDatabaseQuery: "database_query",
	StepUserQuery:     "user_query",
	StepCalculation:   "calculation",
	StepLLM:           "LLM",
}

// StepTypes lists every valid step type in declaration order.
func StepTypes() []StepType {
	return []StepType{StepDatabaseQuery, StepUserQuery, StepCalculation, StepLLM}
}

// String returns the wire name of the step type ("database_query", "LLM", ...).
func (t StepType) String() string {
	if int(t) < len(stepTypeNames) {
		return stepTypeNames[t]
	}
	return fmt.Sprintf("StepType(%d)", uint8(t))
}

// Valid reports whether t is one of the four executable step types.
func (t StepType) Valid() bool {
	return t >= StepDatabaseQuery && t <= StepLLM
}

// ParseStepType converts a wire name back into a StepType.
func ParseStepType(s string) (StepType, error) {
	for _, t := range StepTypes() {
		if t.String() == s {
			return t, nil
		}
	}
	return StepUnknown, fmt.Errorf("unknown step type %q", s)
}

// MarshalText keeps the wire name in checkpoints.
func (t StepType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the wire name; an empty string maps to StepUnknown.
func (t *StepType) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*t = StepUnknown
		return nil
	}
	parsed, err := ParseStepType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Step is the smallest unit of work in a plan.
// Only StepInput changes after parsing, and only through dependency substitution.
type Step struct {
	// StepNumber is the "#E<n>" token identifying the step.
	StepNumber string `json:"step_number" yaml:"step_number"`

	Type StepType `json:"step_type" yaml:"step_type"`

	// StepInput is free text that may embed other steps' numbers as references.
	StepInput string `json:"step_input" yaml:"step_input"`

	// Dependencies are the step numbers referenced by StepInput, in order of first appearance.
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
}

// Clone returns a copy that shares no slices with s.
func (s Step) Clone() Step {
	c := s
	c.Dependencies = slices.Clone(s.Dependencies)
	return c
}

// Describe renders the step the way it is shown to the synthesis model.
func (s Step) Describe() string {
	return fmt.Sprintf("Step %s [%s]: %s, depending on steps: [%s]",
		s.StepNumber, s.Type, s.StepInput, strings.Join(s.Dependencies, ", "))
}
