/*
Package domain contains the core data model of the arbor plan execution engine.

It defines the entities the dispatcher walks and the checkpoint protocol persists.
This package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Step: One unit of a plan, typed by a closed StepType enum.
  - Plan: The dependency-sorted sequence of steps.
  - StepResult: The append-only output of one executed step.
  - ExecutionState: The serializable snapshot of a run (plan, cursor, results, transcript, phase).
  - LifecycleHooks: Observability callbacks fired by the dispatcher.
*/
package domain
