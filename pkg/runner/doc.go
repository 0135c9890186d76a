/*
Package runner drives an interactive arbor session from a terminal or a pipe.

The runner owns the ask/answer loop: it hands the task to the engine, shows each
pending human question through an IOHandler, forwards the answer and finally
presents the conclusion. Closing the input leaves the session suspended in the
store, so the run can be picked up later with "arbor answer".

# Key Components

  - Runner: The loop over Engine.Ask and Engine.Answer.
  - IOHandler: Decouples how questions are shown and answers are read.
  - TextHandler: Line-based terminal interaction with markdown rendering.
  - JSONHandler: JSON-Lines events for scripting and editor integrations.
  - SignalManager: SIGINT/SIGTERM handling around blocking reads.

# Usage

	r := runner.New(runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)))
	state, err := r.Run(ctx, engine, sessionID, task)
*/
package runner
