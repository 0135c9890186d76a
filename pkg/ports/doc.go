/*
Package ports defines the driven ports (interfaces) for the arbor engine.

These interfaces decouple the dispatcher from external implementations, allowing
the engine to work with various checkpoint backends and collaborators.

# Key Interfaces

  - StateStore: Persists and loads the ExecutionState checkpoint of a session.
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - Planner: Proposes the initial retrieval requests and writes the raw plan text.
  - Retriever: Answers database_query steps from the knowledge backend.
  - Solver: Runs calculation steps on the external computational engine.
  - Reasoner: Answers LLM steps, extracts feedback, formulates calculations and concludes.
*/
package ports
