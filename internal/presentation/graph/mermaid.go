// Package graph renders plans as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphOverlay contains run progress to visualize on the graph.
type GraphOverlay struct {
	CompletedSteps []string
	CurrentStep    string
}

// OverlayFor derives the overlay of a run from its state.
func OverlayFor(state *domain.ExecutionState) *GraphOverlay {
	o := &GraphOverlay{}
	for _, r := range state.Results {
		o.CompletedSteps = append(o.CompletedSteps, r.StepNumber)
	}
	if step, ok := state.CurrentStep(); ok && state.Phase != domain.PhaseDone {
		o.CurrentStep = step.StepNumber
	}
	return o
}

// maxLabel truncates step inputs so large prompts keep the chart readable.
const maxLabel = 60

// GenerateMermaid produces a Mermaid flowchart of the plan's dependency graph.
// It applies semantic styling:
// - database_query: [(Cylinder)]
// - user_query: [/Parallelogram/]
// - calculation: [[Subroutine]]
// - LLM: [Rectangle]
// Edges run from a dependency to the step consuming it. Steps are emitted in plan order.
func GenerateMermaid(plan domain.Plan, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, step := range plan.Steps {
		id := sanitizeMermaidID(step.StepNumber)

		opener, closer := "[", "]"
		switch step.Type {
		case domain.StepDatabaseQuery:
			opener, closer = "[(", ")]"
		case domain.StepUserQuery:
			opener, closer = "[/", "/]"
		case domain.StepCalculation:
			opener, closer = "[[", "]]"
		}

		fmt.Fprintf(&sb, "    %s%s\"%s %s<br/>%s\"%s\n", id, opener, step.StepNumber, step.Type, label(step.StepInput), closer)
	}

	for _, step := range plan.Steps {
		for _, dep := range step.Dependencies {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(dep), sanitizeMermaidID(step.StepNumber))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef done fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, n := range overlay.CompletedSteps {
			id := sanitizeMermaidID(n)
			if !seen[id] && id != "" {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s done;\n", id)
			}
		}
		if overlay.CurrentStep != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep))
		}
	}

	return sb.String()
}

func label(input string) string {
	s := strings.Join(strings.Fields(input), " ")
	if r := []rune(s); len(r) > maxLabel {
		s = string(r[:maxLabel-1]) + "…"
	}
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.TrimPrefix(id, "#")
}
