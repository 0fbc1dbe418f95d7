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

type fakeBackend struct {
	rows []map[string]any
	err  error
}

func (f *fakeBackend) Execute(ctx context.Context, tpl gatewaytypes.Template, params map[string]any) ([]map[string]any, error) {
	return f.rows, f.err
}

func buildEngineStore(t *testing.T) *template.Store {
	t.Helper()
	store := template.NewStore(vectorstore.NewInMemoryStore(), stubEmbedder{}, "templates")
	require.NoError(t, store.Index(context.Background(), gatewaytypes.Template{
		ID:          "find_orders_by_customer_id",
		Description: "find a customer's orders",
		NLExamples:  []string{"show me customer orders"},
		SemanticTags: gatewaytypes.SemanticTags{
			Action:        "find",
			PrimaryEntity: "order",
		},
		Parameters: []gatewaytypes.ParameterSpec{
			{Name: "customer_id", Type: gatewaytypes.ParamInteger, Required: true},
		},
		Backend:           "sql",
		OperationTemplate: "SELECT * FROM orders WHERE customer_id = :customer_id",
		ResultFormat:      gatewaytypes.ResultFormatList,
	}))
	return store
}

func TestEngine_Retrieve_SQLRoundTrip(t *testing.T) {
	store := buildEngineStore(t)
	matcher := NewMatcher(store, MatcherConfig{ConfidenceThreshold: 0.1})

	registry := NewRegistry()
	registry.Register("sql", &fakeBackend{rows: []map[string]any{{"id": 1, "customer_id": 456}}})

	engine := NewEngine(matcher, nil, registry)
	items, err := engine.Retrieve(context.Background(), "Show me customer 456's orders", nil)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Metadata["success"].(bool))
	assert.Equal(t, "find_orders_by_customer_id", items[0].Metadata["template_id"])
	assert.Greater(t, items[0].Confidence, 0.0)
}

func TestEngine_Retrieve_NoMatch(t *testing.T) {
	store := template.NewStore(vectorstore.NewInMemoryStore(), stubEmbedder{}, "templates")
	matcher := NewMatcher(store, MatcherConfig{})
	engine := NewEngine(matcher, nil, NewRegistry())

	items, err := engine.Retrieve(context.Background(), "anything", nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, NoMatchMarker, items[0].Metadata["reason"])
}

func TestEngine_Retrieve_ValidationFailureSkipsExecution(t *testing.T) {
	store := buildEngineStore(t)
	matcher := NewMatcher(store, MatcherConfig{ConfidenceThreshold: 0.1})

	registry := NewRegistry()
	registry.Register("sql", &fakeBackend{rows: []map[string]any{{"should": "not run"}}})

	engine := NewEngine(matcher, nil, registry)
	items, err := engine.Retrieve(context.Background(), "show me customer orders without an id", nil)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Metadata["success"].(bool))
}

func TestEngine_Retrieve_BackendErrorBecomesFailureItem(t *testing.T) {
	store := buildEngineStore(t)
	matcher := NewMatcher(store, MatcherConfig{ConfidenceThreshold: 0.1})

	registry := NewRegistry()
	registry.Register("sql", &fakeBackend{err: assert.AnError})

	engine := NewEngine(matcher, nil, registry)
	items, err := engine.Retrieve(context.Background(), "Show me customer 456's orders", nil)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Metadata["success"].(bool))
}
