package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
)

// printState shows the open question or the conclusion of state.
func printState(w io.Writer, state *domain.ExecutionState) {
	switch state.Phase {
	case domain.PhaseSuspended:
		fmt.Fprintf(w, "[%s] %s\n", state.Pending.StepNumber, state.Pending.Question)
		fmt.Fprintf(w, "Answer with: arbor answer %s --step=%s \"<answer>\"\n", state.SessionID, state.Pending.StepNumber)
	case domain.PhaseDone:
		out := tui.ConclusionMarkdown(state.Conclusion)
		if runner.IsTerminal(w) {
			if rendered, err := tui.NewRenderer(runner.TerminalWidth(w, 100))(out); err == nil {
				out = rendered
			}
		}
		fmt.Fprintln(w, strings.TrimSpace(out))
	default:
		fmt.Fprintf(w, "Session %s stopped while %s at step %d of %d. Retry with: arbor continue %s\n",
			state.SessionID, state.Phase, state.Cursor+1, state.Plan.Len(), state.SessionID)
	}
}
