package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
)

// SessionOptions configures an interactive session.
type SessionOptions struct {
	SessionID string
	JSON      bool
	In        io.Reader
	Out       io.Writer
}

// RunSession asks task and answers questions from the terminal until the run ends.
// An empty task attaches to the stored, suspended session instead.
func RunSession(ctx context.Context, app *App, task string, opts SessionOptions) (*domain.ExecutionState, error) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	signals := runner.NewSignalManager(ctx)
	defer signals.Stop()

	r := runner.New(
		runner.WithHandler(newHandler(opts)),
		runner.WithLogger(app.Logger),
		runner.WithSignals(signals),
	)

	var (
		state *domain.ExecutionState
		err   error
	)
	if task != "" {
		state, err = r.Run(signals.Context(), app.Engine, opts.SessionID, task)
	} else {
		state, err = app.Engine.State(ctx, opts.SessionID)
		if err != nil {
			return nil, err
		}
		state, err = r.Attach(signals.Context(), app.Engine, state)
	}

	if !opts.JSON && state != nil && state.Phase == domain.PhaseSuspended {
		fmt.Fprintf(opts.Out, "\nSession %s is waiting on %s. Resume with: arbor answer %s --step=%s \"<answer>\"\n",
			state.SessionID, state.Pending.StepNumber, state.SessionID, state.Pending.StepNumber)
	}
	return state, err
}

func newHandler(opts SessionOptions) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(opts.In, opts.Out)
	}
	var hopts []runner.TextHandlerOption
	if runner.IsTerminal(opts.Out) {
		hopts = append(hopts, runner.WithTextHandlerRenderer(tui.NewRenderer(runner.TerminalWidth(opts.Out, 100))))
	}
	return runner.NewTextHandler(opts.In, opts.Out, hopts...)
}
