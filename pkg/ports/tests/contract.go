// Package tests holds reusable contract suites for port implementations.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// SampleState returns a suspended state with every field populated.
func SampleState(sessionID string) *domain.ExecutionState {
	state := domain.NewExecutionState(sessionID, "What is the snow load in city X?")
	state.Context = "Section 5.2 Snow load zones"
	state.Plan = domain.Plan{Steps: []domain.Step{
		{StepNumber: "#E1", Type: domain.StepDatabaseQuery, StepInput: "zone of city X", Dependencies: []string{}},
		{StepNumber: "#E2", Type: domain.StepUserQuery, StepInput: "What is the roof pitch?", Dependencies: []string{}},
		{StepNumber: "#E3", Type: domain.StepCalculation, StepInput: "f(#E1, #E2)", Dependencies: []string{"#E1", "#E2"}},
	}}
	state.Cursor = 1
	state.Results = []domain.StepResult{{StepNumber: "#E1", Result: "zone 2"}}
	state.Phase = domain.PhaseSuspended
	state.Pending = &domain.PendingQuestion{StepNumber: "#E2", Question: "What is the roof pitch?"}
	state.Transcript = []domain.Message{
		{Role: domain.RoleHuman, Content: "What is the snow load in city X?"},
		{Role: domain.RoleAssistant, Content: "What is the roof pitch?"},
	}
	state.Revision = 3
	return state
}

// RunStateStoreContract verifies that a StateStore implementation adheres to the interface contract.
func RunStateStoreContract(t *testing.T, store ports.StateStore) {
	t.Helper()
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := SampleState(sessionID)

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state, loaded, "checkpoint must round-trip")
		require.NoError(t, loaded.Validate())
	})

	t.Run("Save Stores A Copy", func(t *testing.T) {
		state := SampleState(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, state))

		state.Results = append(state.Results, domain.StepResult{StepNumber: "#E2", Result: "30 degrees"})
		state.Cursor = 2

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.Cursor)
		assert.Len(t, loaded.Results, 1)
	})

	t.Run("Overwrite", func(t *testing.T) {
		state := SampleState(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, state))

		state.Phase = domain.PhaseDone
		state.Pending = nil
		state.Revision++
		require.NoError(t, store.Save(ctx, sessionID, state))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseDone, loaded.Phase)
		assert.Equal(t, state.Revision, loaded.Revision)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, SampleState(sessionID)))

		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewExecutionState(id1, "a")))
		require.NoError(t, store.Save(ctx, id2, domain.NewExecutionState(id2, "b")))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
