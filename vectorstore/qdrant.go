package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant-backed Store.
type QdrantConfig struct {
	Host       string
	Port       int
	BaseURL    string
	APIKey     string
	Distance   string // Cosine (default), Dot, Euclid
	Timeout    time.Duration
	AutoCreate bool
}

// QdrantStore implements Store against Qdrant's REST API, one Qdrant
// collection per vectorstore collection name. Mirrors rag.QdrantStore's
// raw-HTTP approach (no Qdrant client SDK is pulled in), generalized from
// one fixed collection to the multi-collection Store interface.
type QdrantStore struct {
	cfg     QdrantConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantStore constructs a Qdrant-backed Store.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = 6333
		}
		baseURL = fmt.Sprintf("http://%s:%d", host, port)
	}
	return &QdrantStore{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "qdrant_vectorstore")),
		ensured: make(map[string]bool),
	}
}

var qdrantNamespace = uuid.MustParse("d9bde6d4-4f3a-4e6b-8f7a-5d8d2f3b4c1a")

func qdrantPointID(id string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(id)).String()
}

// EnsureCollection implements Store.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	if !s.cfg.AutoCreate {
		return nil
	}
	s.mu.Lock()
	if s.ensured[collection] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if dimensions <= 0 {
		return fmt.Errorf("vectorstore: collection %q requires a positive dimension to create", collection)
	}

	body := map[string]any{
		"vectors": map[string]any{"size": dimensions, "distance": s.cfg.Distance},
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(collection))
	err := s.doJSON(ctx, http.MethodPut, path, body, nil, http.StatusConflict)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ensured[collection] = true
	s.mu.Unlock()
	return nil
}

// Upsert implements Store.
func (s *QdrantStore) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	if err := s.EnsureCollection(ctx, collection, len(vector)); err != nil {
		return err
	}
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["__id"] = id

	point := map[string]any{
		"id":      qdrantPointID(id),
		"vector":  vector,
		"payload": payload,
	}
	body := map[string]any{"points": []any{point}}
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection))
	return s.doJSON(ctx, http.MethodPut, path, body, nil)
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := fmt.Sprint(r.ID)
		if r.Payload != nil {
			if v, ok := r.Payload["__id"].(string); ok {
				id = v
				delete(r.Payload, "__id")
			}
		}
		out = append(out, Match{ID: id, Score: r.Score, Metadata: r.Payload})
	}
	return out, nil
}

// Delete implements Store.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, 0, len(ids))
	for _, id := range ids {
		points = append(points, qdrantPointID(id))
	}
	body := map[string]any{"points": points}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(collection))
	return s.doJSON(ctx, http.MethodPost, path, body, nil)
}

// Count implements Store.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", url.PathEscape(collection))
	if err := s.doJSON(ctx, http.MethodPost, path, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in, out any, okStatuses ...int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		for _, ok := range okStatuses {
			if resp.StatusCode == ok {
				return nil
			}
		}
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vectorstore: qdrant %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
