package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect planner output",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Parse and sort a plan, reporting the execution order or the first problem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := compileFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Plan is valid: %d steps\n", plan.Len())
		for i, s := range plan.Steps {
			deps := "none"
			if len(s.Dependencies) > 0 {
				deps = strings.Join(s.Dependencies, ", ")
			}
			fmt.Fprintf(out, "%2d. %s %s [%s] (depends on: %s)\n", i+1, s.StepNumber, s.Type, s.StepInput, deps)
		}
		return nil
	},
}

var planGraphCmd = &cobra.Command{
	Use:   "graph [file]",
	Short: "Print a Mermaid flowchart of a plan",
	Long: `Prints the dependency graph of a plan file. With --session the plan of a stored
session is drawn instead, with completed and current steps highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		var (
			plan    domain.Plan
			overlay *graph.GraphOverlay
		)
		switch {
		case sessionID != "":
			storage, err := openStorage(cmd)
			if err != nil {
				return err
			}
			defer storage.Close()

			state, err := storage.Store.Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("loading session %q: %w", sessionID, err)
			}
			plan = state.Plan
			overlay = graph.OverlayFor(state)
		case len(args) == 1:
			var err error
			if plan, err = compileFile(args[0]); err != nil {
				return err
			}
		default:
			return fmt.Errorf("give a plan file or --session")
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(plan, overlay))
		return nil
	},
}

func compileFile(path string) (domain.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Plan{}, err
	}
	return compiler.Compile(string(data))
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planGraphCmd)
	planGraphCmd.Flags().String("session", "", "Draw the plan of a stored session with its progress")
}
