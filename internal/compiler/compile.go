package compiler

import (
	"errors"

	"github.com/aretw0/arbor/pkg/domain"
)

// Compile parses planner output, validates every step and returns the sorted plan.
// Any error is a *domain.PlanError; nothing may execute when Compile fails.
func Compile(text string) (domain.Plan, error) {
	steps := Parse(text)
	if err := Validate(steps); err != nil {
		return domain.Plan{}, err
	}

	sorted, err := Sort(steps)
	if err != nil {
		return domain.Plan{}, &domain.PlanError{Segment: -1, Err: err}
	}
	return domain.Plan{Steps: sorted}, nil
}

// Validate enforces the structural invariants of parsed steps.
func Validate(steps []domain.Step) error {
	if len(steps) == 0 {
		return &domain.PlanError{Segment: -1, Reason: "no steps found", Err: domain.ErrMalformedPlan}
	}

	known := make(map[string]bool, len(steps))
	for i, s := range steps {
		switch {
		case s.StepNumber == "":
			return malformed(i, "", "missing step number")
		case !s.Type.Valid():
			return malformed(i, s.StepNumber, "missing or unknown step type keyword")
		case s.StepInput == "":
			return malformed(i, s.StepNumber, "missing bracketed input")
		case known[s.StepNumber]:
			return malformed(i, s.StepNumber, "duplicate step number")
		}
		known[s.StepNumber] = true
	}

	for i, s := range steps {
		for _, dep := range s.Dependencies {
			if !known[dep] {
				return malformed(i, s.StepNumber, "dependency "+dep+" is not a step of this plan")
			}
		}
	}
	return nil
}

func malformed(segment int, stepNumber, reason string) error {
	return &domain.PlanError{
		Segment:    segment,
		StepNumber: stepNumber,
		Reason:     reason,
		Err:        domain.ErrMalformedPlan,
	}
}

// IsPlanError reports whether err means the plan could not be built.
func IsPlanError(err error) bool {
	var pe *domain.PlanError
	return errors.As(err, &pe)
}
