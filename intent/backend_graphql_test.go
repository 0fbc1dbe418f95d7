package intent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit-gateway/orbit/datasource"
	"github.com/orbit-gateway/orbit/gatewaytypes"
)

func TestGraphQLBackend_Execute_CoercesVariablesAndReturnsData(t *testing.T) {
	var decoded graphqlEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&decoded)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"customer": map[string]any{"id": 1}},
		})
	}))
	defer srv.Close()

	source := datasource.NewHTTPSource(datasource.HTTPConfig{BaseURL: srv.URL})
	backend := NewGraphQLBackend(source)

	tpl := gatewaytypes.Template{
		Endpoint:          "/graphql",
		OperationTemplate: "query($id: Int!) { customer(id: $id) { id } }",
		Parameters:        []gatewaytypes.ParameterSpec{{Name: "id", GraphQLType: "Int!"}},
		ResponsePath:      "customer",
	}
	rows, err := backend.Execute(t.Context(), tpl, map[string]any{"id": "42"})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0]["id"])
	assert.EqualValues(t, 42, decoded.Variables["id"])
}

func TestGraphQLBackend_Execute_SurfacesGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "not found"}},
		})
	}))
	defer srv.Close()

	source := datasource.NewHTTPSource(datasource.HTTPConfig{BaseURL: srv.URL})
	backend := NewGraphQLBackend(source)

	tpl := gatewaytypes.Template{Endpoint: "/graphql", OperationTemplate: "query { x }"}
	_, err := backend.Execute(t.Context(), tpl, map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCoerceGraphQLValue_StripsWrappers(t *testing.T) {
	assert.Equal(t, 5, coerceGraphQLValue("Int!", "5"))
	assert.Equal(t, 2.5, coerceGraphQLValue("[Float]!", "2.5"))
	assert.Equal(t, true, coerceGraphQLValue("Boolean", true))
	assert.Equal(t, "abc", coerceGraphQLValue("ID", "abc"))
}
