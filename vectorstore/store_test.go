package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_UpsertSearch(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "docs", "a", []float32{1, 0, 0}, map[string]any{"name": "a"}))
	require.NoError(t, s.Upsert(ctx, "docs", "b", []float32{0, 1, 0}, map[string]any{"name": "b"}))
	require.NoError(t, s.Upsert(ctx, "docs", "c", []float32{0.9, 0.1, 0}, map[string]any{"name": "c"}))

	matches, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "c", matches[1].ID)
}

func TestInMemoryStore_CollectionsAreIsolated(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "templates", "t1", []float32{1, 0}, nil))
	require.NoError(t, s.Upsert(ctx, "chunks", "c1", []float32{1, 0}, nil))

	n, err := s.Count(ctx, "templates")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := s.Search(ctx, "chunks", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ID)
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "docs", "a", []float32{1}, nil))
	require.NoError(t, s.Delete(ctx, "docs", []string{"a"}))
	n, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInMemoryStore_EmptyCollectionSearch(t *testing.T) {
	s := NewInMemoryStore()
	matches, err := s.Search(context.Background(), "missing", []float32{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1}))
}
