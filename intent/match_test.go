package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/intent/template"
	"github.com/orbit-gateway/orbit/vectorstore"
)

type stubEmbedder struct{ fail bool }

func (s stubEmbedder) Dimensions() int { return 3 }
func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, assert.AnError
	}
	// crude bag-of-words-ish vector: length buckets to differentiate templates.
	v := []float32{0, 0, 0}
	for i, r := range text {
		v[i%3] += float32(r % 7)
	}
	return v, nil
}
func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

func buildStore(t *testing.T, embedder stubEmbedder) *template.Store {
	t.Helper()
	store := template.NewStore(vectorstore.NewInMemoryStore(), embedder, "templates")
	require.NoError(t, store.Index(context.Background(), gatewaytypes.Template{
		ID:          "find_orders_by_customer_id",
		Description: "find a customer's orders",
		NLExamples:  []string{"show me customer orders"},
		SemanticTags: gatewaytypes.SemanticTags{
			Action:        "find",
			PrimaryEntity: "order",
			Synonyms:      []string{"purchase"},
		},
		Parameters: []gatewaytypes.ParameterSpec{{Name: "customer_id", Type: gatewaytypes.ParamInteger, Required: true}},
	}))
	return store
}

func TestMatcher_AcceptsAboveThreshold(t *testing.T) {
	store := buildStore(t, stubEmbedder{})
	m := NewMatcher(store, MatcherConfig{ConfidenceThreshold: 0.1})

	result, err := m.Match(context.Background(), "show me customer orders")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, "find_orders_by_customer_id", result.Template.ID)
}

func TestMatcher_BoostsCappedAtOne(t *testing.T) {
	store := buildStore(t, stubEmbedder{})
	m := NewMatcher(store, MatcherConfig{ConfidenceThreshold: 0.1})

	result, err := m.Match(context.Background(), "find customer order history")
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Similarity, 1.0)
}

func TestMatcher_EmptyLibraryNoMatch(t *testing.T) {
	store := template.NewStore(vectorstore.NewInMemoryStore(), stubEmbedder{}, "templates")
	m := NewMatcher(store, MatcherConfig{})

	result, err := m.Match(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
}

func TestMatcher_FallsBackToJaccardOnEmbedFailure(t *testing.T) {
	store := buildStore(t, stubEmbedder{})
	// Rebuild matcher against a store whose embedder now fails at query time.
	failingStore := template.NewStore(vectorstore.NewInMemoryStore(), stubEmbedder{fail: true}, "templates")
	_ = store
	m := NewMatcher(failingStore, MatcherConfig{ConfidenceThreshold: 2}) // unreachable threshold, just exercising the path

	result, err := m.Match(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("show me the order", "order"))
	assert.False(t, containsWord("show me the order", ""))
}
