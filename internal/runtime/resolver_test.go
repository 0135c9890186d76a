package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
)

func TestResolveInline(t *testing.T) {
	results := []domain.StepResult{
		{StepNumber: "#E1", Result: "zone 2"},
		{StepNumber: "#E10", Result: "ten"},
	}

	tests := []struct {
		name       string
		step       domain.Step
		want       string
		unresolved []string
	}{
		{
			name: "Every Occurrence Replaced",
			step: domain.Step{StepInput: "load for #E1 (#E1)", Dependencies: []string{"#E1"}},
			want: "load for zone 2 (zone 2)",
		},
		{
			name: "Token Boundary",
			step: domain.Step{StepInput: "#E1 and #E10", Dependencies: []string{"#E1", "#E10"}},
			want: "zone 2 and ten",
		},
		{
			name: "Prefix Not Rewritten When Longer Token Unlisted",
			step: domain.Step{StepInput: "#E1 and #E10", Dependencies: []string{"#E1"}},
			want: "zone 2 and #E10",
		},
		{
			name:       "Unresolved Left Verbatim",
			step:       domain.Step{StepInput: "compare #E1 with #E7", Dependencies: []string{"#E1", "#E7"}},
			want:       "compare zone 2 with #E7",
			unresolved: []string{"#E7"},
		},
		{
			name: "No Dependencies",
			step: domain.Step{StepInput: "plain #E1 text", Dependencies: []string{}},
			want: "plain #E1 text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unresolved := runtime.ResolveInline(tt.step, results)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.unresolved, unresolved)
		})
	}
}

func TestResolveInline_ResultsAreNotRescanned(t *testing.T) {
	results := []domain.StepResult{
		{StepNumber: "#E1", Result: "see #E2"},
		{StepNumber: "#E2", Result: "secret"},
	}
	step := domain.Step{StepInput: "#E1", Dependencies: []string{"#E1", "#E2"}}

	got, _ := runtime.ResolveInline(step, results)
	assert.Equal(t, "see #E2", got)
}

func TestResolveListing(t *testing.T) {
	results := []domain.StepResult{
		{StepNumber: "#E1", Result: "zone 2"},
		{StepNumber: "#E2", Result: "30 degrees"},
	}

	t.Run("Declaration Order", func(t *testing.T) {
		step := domain.Step{StepInput: "f(#E1, #E2)", Dependencies: []string{"#E2", "#E1"}}
		listing, unresolved := runtime.ResolveListing(step, results)
		assert.Equal(t, "#E2 = 30 degrees\n#E1 = zone 2\n", listing)
		assert.Empty(t, unresolved)
		assert.Equal(t, "f(#E1, #E2)", step.StepInput)
	})

	t.Run("Unresolved Skipped", func(t *testing.T) {
		step := domain.Step{StepInput: "f", Dependencies: []string{"#E3", "#E1"}}
		listing, unresolved := runtime.ResolveListing(step, results)
		assert.Equal(t, "#E1 = zone 2\n", listing)
		assert.Equal(t, []string{"#E3"}, unresolved)
	})

	t.Run("Empty", func(t *testing.T) {
		listing, unresolved := runtime.ResolveListing(domain.Step{Dependencies: []string{}}, results)
		assert.Empty(t, listing)
		assert.Empty(t, unresolved)
	})
}
