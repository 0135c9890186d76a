package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
)

var answerCmd = &cobra.Command{
	Use:   "answer <session-id> [answer]",
	Short: "Answer the open question of a suspended session",
	Long: `With an answer argument the session is resumed once and the next question or the
conclusion is printed; --step must then name the question being answered. Without one,
the session continues interactively on stdin.`,
	Example: `  arbor answer roof-1 --step=#E1 "about 500 m"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		step, _ := cmd.Flags().GetString("step")

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if len(args) == 1 {
			_, err := cli.RunSession(cmd.Context(), app, "", cli.SessionOptions{
				SessionID: args[0],
				In:        cmd.InOrStdin(),
				Out:       cmd.OutOrStdout(),
			})
			return err
		}

		state, err := app.Engine.Answer(cmd.Context(), args[0], step, args[1])
		if err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var continueCmd = &cobra.Command{
	Use:   "continue <session-id>",
	Short: "Retry a session that stopped on a failed step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		state, err := app.Engine.Continue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(continueCmd)
	answerCmd.Flags().String("step", "", "Step number of the question being answered, required with an answer argument")
}
