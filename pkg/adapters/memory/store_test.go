package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	tests.RunStateStoreContract(t, store)
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, "s1", tests.SampleState("s1")))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	loaded.Results[0].Result = "tampered"
	loaded.Pending.Question = "tampered"

	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "zone 2", again.Results[0].Result)
	assert.Equal(t, "What is the roof pitch?", again.Pending.Question)
}
