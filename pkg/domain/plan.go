package domain

// Plan is the ordered sequence of steps produced for a task.
// Once built by the compiler, Steps is a valid topological order of the dependency graph.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Len returns the number of steps.
func (p Plan) Len() int {
	return len(p.Steps)
}

// Index returns the position of the step with the given number, or -1.
func (p Plan) Index(stepNumber string) int {
	for i, s := range p.Steps {
		if s.StepNumber == stepNumber {
			return i
		}
	}
	return -1
}

// Clone deep-copies the plan.
func (p Plan) Clone() Plan {
	if p.Steps == nil {
		return Plan{}
	}
	steps := make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = s.Clone()
	}
	return Plan{Steps: steps}
}

// StepResult is the output of executing one step. It is never mutated once appended.
type StepResult struct {
	StepNumber string `json:"step_number"`
	Result     string `json:"result"`
}

// Lookup returns the result recorded for stepNumber, scanning in append order.
func Lookup(results []StepResult, stepNumber string) (string, bool) {
	for _, r := range results {
		if r.StepNumber == stepNumber {
			return r.Result, true
		}
	}
	return "", false
}
