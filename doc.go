/*
Package arbor executes plans written by a language model as dependency-sorted steps.

A task is planned into steps such as "#E1 = DataBase[...]" or "#E2 = Human[...]",
the steps are sorted by their #E references and walked in order. Each result is
substituted into the steps that reference it. A human step suspends the run
after a checkpoint. Answering it resumes the run from that checkpoint, possibly
in another process. Once every step has a result, a cited conclusion is
synthesized.

# Usage

	eng, err := arbor.New(
		arbor.WithPlanner(model),
		arbor.WithReasoner(model),
		arbor.WithRetriever(retrieval.New("http://localhost:8081")),
		arbor.WithSolver(solver.New("http://localhost:8082")),
		arbor.WithStore(file.New("")),
	)
	if err != nil {
		log.Fatal(err)
	}

	state, err := eng.Ask(ctx, "session-1", "What is the snow load on my roof in Nuremberg?")
	for err == nil && state.Phase == domain.PhaseSuspended {
		state, err = eng.Answer(ctx, "session-1", state.Pending.StepNumber, readAnswer(state.Pending.Question))
	}
	if err != nil {
		fmt.Println(domain.Describe(err))
		return
	}
	fmt.Println(state.Conclusion.Conclusion)
*/
package arbor
