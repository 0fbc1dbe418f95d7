package datasource

import (
	"context"
	"net/http"
	"time"
)

// HTTPConfig configures an HTTP/GraphQL datasource: a base URL, default
// headers (auth tokens, API keys), and a request timeout.
type HTTPConfig struct {
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        time.Duration
}

// HTTPSource is a DataSource wrapping a configured *http.Client, used by
// both the HTTP-JSON and GraphQL intent backends.
type HTTPSource struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// NewHTTPSource constructs an HTTP datasource.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		baseURL: cfg.BaseURL,
		headers: cfg.DefaultHeaders,
		client:  &http.Client{Timeout: timeout},
	}
}

// Kind implements DataSource.
func (s *HTTPSource) Kind() string { return "http" }

// BaseURL returns the configured base URL for endpoint-template resolution.
func (s *HTTPSource) BaseURL() string { return s.baseURL }

// Client returns the underlying *http.Client.
func (s *HTTPSource) Client() *http.Client { return s.client }

// ApplyDefaultHeaders sets every configured default header on req,
// leaving the caller free to override them afterward.
func (s *HTTPSource) ApplyDefaultHeaders(req *http.Request) {
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
}

// Ping implements DataSource with a best-effort HEAD request to the base
// URL; a non-2xx/3xx response is still considered reachable (the backend
// may not support HEAD on its root).
func (s *HTTPSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Close implements DataSource; the stdlib HTTP client owns no resources
// that need explicit release beyond idle connections, reclaimed by the
// transport's own GC.
func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
