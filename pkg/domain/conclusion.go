package domain

import (
	"fmt"
	"strings"
)

// Conclusion is the cited answer produced by synthesis.
type Conclusion struct {
	Conclusion string   `json:"conclusion" mapstructure:"conclusion"`
	Citations  []string `json:"citations" mapstructure:"citations"`
}

// Validate rejects outputs that cannot be shown to the user.
func (c Conclusion) Validate() error {
	if strings.TrimSpace(c.Conclusion) == "" {
		return fmt.Errorf("%w: empty conclusion", ErrInvalidOutput)
	}
	for i, cite := range c.Citations {
		if strings.TrimSpace(cite) == "" {
			return fmt.Errorf("%w: citation %d is empty", ErrInvalidOutput, i)
		}
	}
	return nil
}

// Calculation is a computational problem statement in two representations.
type Calculation struct {
	// Formal is the LaTeX rendition.
	Formal string `json:"problem_latex" mapstructure:"problem_latex"`
	// Plain is what the external solver receives.
	Plain string `json:"problem_plain_text" mapstructure:"problem_plain_text"`
}

// Validate requires the plain form, which is the only one sent to the solver.
func (c Calculation) Validate() error {
	if strings.TrimSpace(c.Plain) == "" {
		return fmt.Errorf("%w: empty plain-text problem", ErrInvalidOutput)
	}
	return nil
}

// ConclusionRequest carries everything the synthesizer hands to the reasoning model.
type ConclusionRequest struct {
	Task    string
	Context string
	Plan    Plan
	Results []StepResult
	// Sources are the retrieved texts the citations must point into.
	Sources []string
}

// PlanSummary renders one line per step.
func (r ConclusionRequest) PlanSummary() string {
	var sb strings.Builder
	for _, s := range r.Plan.Steps {
		sb.WriteString(s.Describe())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ResultSummary renders one line per step result.
func (r ConclusionRequest) ResultSummary() string {
	var sb strings.Builder
	for _, res := range r.Results {
		fmt.Fprintf(&sb, "Step %s result: %s\n", res.StepNumber, res.Result)
	}
	return sb.String()
}
