package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/vectorstore"
)

// fakeEmbedder deterministically maps text length/content to a 2D vector so
// tests don't need a real embedding provider.
type fakeEmbedder struct{}

func (fakeEmbedder) Dimensions() int { return 2 }

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var ones float32
	for _, r := range text {
		if r == 'o' {
			ones++
		}
	}
	return []float32{float32(len(text)), ones}, nil
}

func (e fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func TestBuildEmbeddingText(t *testing.T) {
	tpl := gatewaytypes.Template{
		Description: "Find Orders",
		NLExamples:  []string{"show my orders"},
		Tags:        []string{"orders"},
		Parameters:  []gatewaytypes.ParameterSpec{{Name: "customer_id"}},
		SemanticTags: gatewaytypes.SemanticTags{
			Action:        "find",
			PrimaryEntity: "order",
			Synonyms:      []string{"purchase"},
		},
	}
	text := BuildEmbeddingText(tpl)
	assert.Contains(t, text, "find orders")
	assert.Contains(t, text, "customer_id")
	assert.Contains(t, text, "purchase")
}

func TestStore_IndexAndGetRoundTrip(t *testing.T) {
	store := NewStore(vectorstore.NewInMemoryStore(), fakeEmbedder{}, "templates")
	tpl := gatewaytypes.Template{ID: "find_orders", Description: "find customer orders"}

	require.NoError(t, store.Index(context.Background(), tpl))

	got, ok := store.Get("find_orders")
	require.True(t, ok)
	assert.Equal(t, BuildEmbeddingText(tpl), got.EmbeddingText)
	assert.NotEmpty(t, got.Embedding)
}

func TestStore_ReindexReplaces(t *testing.T) {
	store := NewStore(vectorstore.NewInMemoryStore(), fakeEmbedder{}, "templates")
	ctx := context.Background()
	require.NoError(t, store.Index(ctx, gatewaytypes.Template{ID: "t1", Description: "a"}))
	require.NoError(t, store.Index(ctx, gatewaytypes.Template{ID: "t1", Description: "completely different"}))
	assert.Equal(t, 1, store.Len())
	got, _ := store.Get("t1")
	assert.Equal(t, "completely different", got.Description)
}

func TestStore_SearchReturnsNearest(t *testing.T) {
	store := NewStore(vectorstore.NewInMemoryStore(), fakeEmbedder{}, "templates")
	ctx := context.Background()
	require.NoError(t, store.Index(ctx, gatewaytypes.Template{ID: "short", Description: "hi"}))
	require.NoError(t, store.Index(ctx, gatewaytypes.Template{ID: "long", Description: "this is a much longer description of something"}))

	vec, err := store.EmbedQuery(ctx, "hi")
	require.NoError(t, err)

	candidates, err := store.Search(ctx, vec, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "short", candidates[0].Template.ID)
}

func TestStore_IndexAllRemovesStale(t *testing.T) {
	store := NewStore(vectorstore.NewInMemoryStore(), fakeEmbedder{}, "templates")
	ctx := context.Background()
	require.NoError(t, store.Index(ctx, gatewaytypes.Template{ID: "keep", Description: "keep me"}))
	require.NoError(t, store.Index(ctx, gatewaytypes.Template{ID: "drop", Description: "drop me"}))

	require.NoError(t, store.IndexAll(ctx, []gatewaytypes.Template{{ID: "keep", Description: "keep me"}}))

	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("drop")
	assert.False(t, ok)
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, JaccardSimilarity("show my orders", "show my orders"))
	assert.Equal(t, 0.0, JaccardSimilarity("", "anything"))
	sim := JaccardSimilarity("show my orders", "show my invoices")
	assert.True(t, sim > 0 && sim < 1)
}
