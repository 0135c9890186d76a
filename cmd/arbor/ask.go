package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/runner"
)

var askCmd = &cobra.Command{
	Use:   "ask <task>...",
	Short: "Ask a question and answer follow-up questions interactively",
	Long: `Plans and runs the task. Whenever a step needs human input the question is printed
and the answer is read from stdin. Closing stdin leaves the session suspended; resume it
later with "arbor answer".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		jsonMode, _ := cmd.Flags().GetBool("json")

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if !jsonMode && runner.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout)
		}
		app.Logger.Info("session started", "session_id", sessionID)

		_, err = cli.RunSession(cmd.Context(), app, strings.Join(args, " "), cli.SessionOptions{
			SessionID: sessionID,
			JSON:      jsonMode,
			In:        cmd.InOrStdin(),
			Out:       cmd.OutOrStdout(),
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringP("session", "s", "", "Session id (default: a new UUID)")
	askCmd.Flags().Bool("json", false, "Emit JSON-Lines events and read answers as JSON")
}
