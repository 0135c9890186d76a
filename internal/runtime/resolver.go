package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/domain"
)

// ResolveInline substitutes the result of every resolved dependency for each occurrence of its
// token in the step input. Tokens are matched whole, so "#E1" never rewrites the prefix of "#E10",
// and results are inserted verbatim without being rescanned.
// Dependencies without a result are left in place and returned in declaration order.
func ResolveInline(step domain.Step, results []domain.StepResult) (string, []string) {
	resolved := make(map[string]string, len(step.Dependencies))
	var unresolved []string
	for _, dep := range step.Dependencies {
		if r, ok := domain.Lookup(results, dep); ok {
			resolved[dep] = r
		} else {
			unresolved = append(unresolved, dep)
		}
	}
	if len(resolved) == 0 {
		return step.StepInput, unresolved
	}

	input := compiler.StepTokenPattern.ReplaceAllStringFunc(step.StepInput, func(token string) string {
		if r, ok := resolved[token]; ok {
			return r
		}
		return token
	})
	return input, unresolved
}

// ResolveListing renders one "<token> = <result>" line per resolved dependency, in declaration
// order. The step input is not touched.
func ResolveListing(step domain.Step, results []domain.StepResult) (string, []string) {
	var sb strings.Builder
	var unresolved []string
	for _, dep := range step.Dependencies {
		r, ok := domain.Lookup(results, dep)
		if !ok {
			unresolved = append(unresolved, dep)
			continue
		}
		fmt.Fprintf(&sb, "%s = %s\n", dep, r)
	}
	return sb.String(), unresolved
}
