package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/orbit-gateway/orbit/datasource"
	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// graphqlEnvelope is the standard GraphQL-over-HTTP request body.
type graphqlEnvelope struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// graphqlResponse is the standard GraphQL-over-HTTP response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// GraphQLBackend posts a fixed-shape {query, variables, operationName?}
// document. It reuses an HTTPSource rather than a dedicated GraphQL
// client, since the wire contract here is a single POST.
type GraphQLBackend struct {
	source *datasource.HTTPSource
}

// NewGraphQLBackend wraps an HTTP datasource pointed at a GraphQL endpoint.
func NewGraphQLBackend(source *datasource.HTTPSource) *GraphQLBackend {
	return &GraphQLBackend{source: source}
}

// Execute implements Backend.
func (b *GraphQLBackend) Execute(ctx context.Context, tpl gatewaytypes.Template, params map[string]any) ([]map[string]any, error) {
	variables := coerceGraphQLVariables(tpl, params)

	envelope := graphqlEnvelope{
		Query:         tpl.OperationTemplate,
		Variables:     variables,
		OperationName: tpl.OperationName,
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, &BackendError{Backend: "graphql", Cause: err}
	}

	endpoint := joinURL(b.source.BaseURL(), tpl.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, &BackendError{Backend: "graphql", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	b.source.ApplyDefaultHeaders(req)

	resp, err := b.source.Client().Do(req)
	if err != nil {
		return nil, &BackendError{Backend: "graphql", Cause: err}
	}
	defer resp.Body.Close()

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &BackendError{Backend: "graphql", Cause: fmt.Errorf("decoding response: %w", err)}
	}

	// GraphQL-level errors surface even on HTTP 200.
	if len(decoded.Errors) > 0 {
		messages := make([]string, len(decoded.Errors))
		for i, e := range decoded.Errors {
			messages[i] = e.Message
		}
		err := &BackendError{Backend: "graphql", Cause: fmt.Errorf("%s", strings.Join(messages, "; "))}
		if len(decoded.Data) == 0 {
			return nil, err
		}
		// partial result present: still surface the error but let the
		// caller ignore it if it chooses to use the rows.
		rows, parseErr := decodeGraphQLData(decoded.Data, tpl.ResponsePath)
		if parseErr != nil {
			return nil, err
		}
		return rows, err
	}

	return decodeGraphQLData(decoded.Data, tpl.ResponsePath)
}

func decodeGraphQLData(data json.RawMessage, responsePath string) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &BackendError{Backend: "graphql", Cause: err}
	}
	return extractRows(decoded, responsePath), nil
}

// coerceGraphQLVariables converts each resolved parameter to the Go type
// matching its declared GraphQL type, stripping `!` and `[...]` wrappers
// for type detection.
func coerceGraphQLVariables(tpl gatewaytypes.Template, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for _, spec := range tpl.Parameters {
		v, ok := params[spec.Name]
		if !ok {
			continue
		}
		out[spec.Name] = coerceGraphQLValue(spec.GraphQLType, v)
	}
	return out
}

func coerceGraphQLValue(declaredType string, v any) any {
	base := strings.TrimSuffix(declaredType, "!")
	base = strings.TrimPrefix(base, "[")
	base = strings.TrimSuffix(base, "]")
	base = strings.TrimSuffix(base, "!")

	s := toDisplayString(v)
	switch base {
	case "Int":
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	case "Float":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "Boolean":
		if bv, ok := v.(bool); ok {
			return bv
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case "ID", "String":
		return s
	}
	return v
}
