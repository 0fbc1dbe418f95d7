package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/orbit-gateway/orbit/datasource"
	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// HTTPBackend renders and runs HTTP-JSON operation templates, retrying on
// 5xx and transport errors with linearly increasing delay. Mirrors the
// backoff shape of llm/retry's exponential retryer, simplified to a
// fixed-increment form.
type HTTPBackend struct {
	source     *datasource.HTTPSource
	maxRetries int
	retryDelay time.Duration
}

// NewHTTPBackend wraps an HTTP datasource. maxRetries <= 0 disables retry.
func NewHTTPBackend(source *datasource.HTTPSource, maxRetries int, retryDelay time.Duration) *HTTPBackend {
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &HTTPBackend{source: source, maxRetries: maxRetries, retryDelay: retryDelay}
}

// Execute implements Backend.
func (b *HTTPBackend) Execute(ctx context.Context, tpl gatewaytypes.Template, params map[string]any) ([]map[string]any, error) {
	endpoint := renderBracePlaceholders(joinURL(b.source.BaseURL(), tpl.Endpoint), routedParams(tpl, params, gatewaytypes.LocationPath))

	method := tpl.Method
	if method == "" {
		method = http.MethodGet
	}

	query := routedParams(tpl, params, gatewaytypes.LocationQuery)
	if len(query) > 0 {
		endpoint = endpoint + "?" + encodeQuery(query)
	}

	bodyParams := routedParams(tpl, params, gatewaytypes.LocationBody)
	headerParams := routedParams(tpl, params, gatewaytypes.LocationHeader)

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * b.retryDelay):
			}
		}

		rows, retryable, err := b.attempt(ctx, method, endpoint, bodyParams, headerParams, tpl.ResponsePath)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !retryable {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// attempt runs one HTTP round trip; bodyParams is re-marshaled fresh each
// call since the previous attempt's reader, if any, was already consumed.
func (b *HTTPBackend) attempt(ctx context.Context, method, endpoint string, bodyParams, headerParams map[string]any, responsePath string) ([]map[string]any, bool, error) {
	var bodyReader io.Reader
	if len(bodyParams) > 0 {
		encoded, err := json.Marshal(bodyParams)
		if err != nil {
			return nil, false, &BackendError{Backend: "http", Cause: err}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, false, &BackendError{Backend: "http", Cause: err}
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	b.source.ApplyDefaultHeaders(req)
	for k, v := range headerParams {
		req.Header.Set(k, fmt.Sprint(v))
	}

	resp, err := b.source.Client().Do(req)
	if err != nil {
		return nil, true, &BackendError{Backend: "http", Cause: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 {
		return nil, true, &BackendError{Backend: "http", Cause: fmt.Errorf("status %d: %s", resp.StatusCode, TruncateMessage(string(respBody), 500))}
	}
	if resp.StatusCode >= 400 {
		return nil, false, &BackendError{Backend: "http", Cause: fmt.Errorf("status %d: %s", resp.StatusCode, TruncateMessage(string(respBody), 500))}
	}

	var decoded any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return nil, false, &BackendError{Backend: "http", Cause: fmt.Errorf("decoding response: %w", err)}
		}
	}

	rows := extractRows(decoded, responsePath)
	return rows, false, nil
}

// routedParams returns the subset of params whose declared Location
// matches loc (or LocationQuery when a template declares no location,
// the default).
func routedParams(tpl gatewaytypes.Template, params map[string]any, loc gatewaytypes.ParameterLocation) map[string]any {
	out := make(map[string]any)
	for _, spec := range tpl.Parameters {
		v, ok := params[spec.Name]
		if !ok {
			continue
		}
		specLoc := spec.Location
		if specLoc == "" {
			specLoc = gatewaytypes.LocationQuery
		}
		if specLoc == loc {
			out[spec.Name] = v
		}
	}
	return out
}

func encodeQuery(params map[string]any) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, fmt.Sprint(v))
	}
	return values.Encode()
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	if len(path) > 0 && path[0] != '/' && base[len(base)-1] != '/' {
		return base + "/" + path
	}
	return base + path
}

// extractRows projects the decoded JSON body through responsePath
// (dot-separated) and normalizes the result to a row slice.
func extractRows(decoded any, responsePath string) []map[string]any {
	target := resolveResponsePath(asMap(decoded), responsePath)
	if target == nil {
		target = decoded
	}
	return normalizeRows(target)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func resolveResponsePath(body map[string]any, path string) any {
	if path == "" || body == nil {
		return body
	}
	var cur any = body
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

func normalizeRows(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{t}
	default:
		return nil
	}
}
