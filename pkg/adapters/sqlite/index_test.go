package sqlite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
)

func seededIndex(t *testing.T, opts ...sqlite.IndexOption) *sqlite.Index {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idx := sqlite.NewIndex(db, opts...)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, sqlite.Section{
		Num:      "4.1",
		Title:    "Snow load zones",
		Category: domain.CategorySnowLoads,
		Chunks: []sqlite.Chunk{
			{DataType: domain.DataTable, Content: "City X lies in snow load zone 2."},
			{DataType: domain.DataDefinition, Content: "A zone groups regions of equal characteristic snow load.\n\n\n\n"},
		},
	}))
	require.NoError(t, idx.Add(ctx, sqlite.Section{
		Num:   "5.2",
		Title: "Roof shape coefficients",
		Chunks: []sqlite.Chunk{
			{DataType: domain.DataParameter, Content: "The shape coefficient depends on the roof pitch."},
		},
	}))
	return idx
}

func TestIndex_Retrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("Best Section First", func(t *testing.T) {
		idx := seededIndex(t)
		got, err := idx.Retrieve(ctx, domain.RetrievalRequest{Query: "snow load zone"})
		require.NoError(t, err)
		assert.Contains(t, got.Text, "4.1 Snow load zones\n")
		assert.Contains(t, got.Text, "City X lies in snow load zone 2.")
		assert.NotContains(t, got.Text, "\n\n\n")
		assert.NotContains(t, got.Text, "5.2")
	})

	t.Run("Data Type Filter", func(t *testing.T) {
		idx := seededIndex(t)
		got, err := idx.Retrieve(ctx, domain.RetrievalRequest{Query: "snow zone", DataType: domain.DataTable})
		require.NoError(t, err)
		assert.Contains(t, got.Text, "City X")
		assert.NotContains(t, got.Text, "A zone groups")
	})

	t.Run("Category Filter", func(t *testing.T) {
		idx := seededIndex(t)
		got, err := idx.Retrieve(ctx, domain.RetrievalRequest{Query: "roof pitch", Category: domain.CategorySnowLoads})
		require.NoError(t, err)
		assert.Empty(t, got.Text)
	})

	t.Run("Limit", func(t *testing.T) {
		idx := seededIndex(t, sqlite.WithLimit(1))
		got, err := idx.Retrieve(ctx, domain.RetrievalRequest{Query: "roof snow"})
		require.NoError(t, err)
		assert.Equal(t, 1, countHeadings(got.Text))
	})

	t.Run("Invalid Filter", func(t *testing.T) {
		idx := seededIndex(t)
		_, err := idx.Retrieve(ctx, domain.RetrievalRequest{Query: "x", DataType: "Recipe"})
		assert.Error(t, err)
	})
}

func countHeadings(text string) int {
	n := 0
	for _, h := range []string{"4.1 Snow load zones", "5.2 Roof shape coefficients"} {
		if strings.Contains(text, h) {
			n++
		}
	}
	return n
}

func TestReduceLinebreaks(t *testing.T) {
	assert.Equal(t, "a\n\nb\nc\n\nd", sqlite.ReduceLinebreaks("a\n\n\n\nb\nc\n\n\nd"))
}
