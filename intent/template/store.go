package template

import (
	"context"
	"fmt"
	"sync"

	"github.com/orbit-gateway/orbit/embedclient"
	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/vectorstore"
)

// Candidate is one nearest-neighbour hit from Search, carrying the raw
// vector distance-derived score before domain reranking is applied by the
// intent matcher.
type Candidate struct {
	Template   gatewaytypes.Template
	Similarity float64
}

// Store persists the template library and exposes the embedding-based
// nearest-neighbour search the intent engine's match stage needs. Indexing
// is idempotent: re-indexing a template id replaces both its vector and
// its stored record.
type Store struct {
	mu         sync.RWMutex
	templates  map[string]gatewaytypes.Template
	vectors    vectorstore.Store
	embedder   embedclient.Provider
	collection string
}

// NewStore constructs a template store backed by vectors (a vectorstore.Store
// collection) and embedder (the embedding provider used consistently at
// both index and query time).
func NewStore(vectors vectorstore.Store, embedder embedclient.Provider, collection string) *Store {
	return &Store{
		templates:  make(map[string]gatewaytypes.Template),
		vectors:    vectors,
		embedder:   embedder,
		collection: collection,
	}
}

// Index embeds t's canonical text and stores/replaces it under t.ID.
func (s *Store) Index(ctx context.Context, t gatewaytypes.Template) error {
	if t.ID == "" {
		return fmt.Errorf("template: id is required")
	}
	text := BuildEmbeddingText(t)
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("template: embed %q: %w", t.ID, err)
	}
	t.EmbeddingText = text
	t.Embedding = vec

	if err := s.vectors.EnsureCollection(ctx, s.collection, s.embedder.Dimensions()); err != nil {
		return fmt.Errorf("template: ensure collection: %w", err)
	}
	if err := s.vectors.Upsert(ctx, s.collection, t.ID, vec, map[string]any{"template_id": t.ID}); err != nil {
		return fmt.Errorf("template: upsert %q: %w", t.ID, err)
	}

	s.mu.Lock()
	s.templates[t.ID] = t
	s.mu.Unlock()
	return nil
}

// IndexAll replaces the library wholesale: every template in library is
// (re-)indexed, and any template id not present in library is deindexed.
// The store is read-only at steady state; it is batch-replaced on library
// reload.
func (s *Store) IndexAll(ctx context.Context, library []gatewaytypes.Template) error {
	wanted := make(map[string]struct{}, len(library))
	for _, t := range library {
		wanted[t.ID] = struct{}{}
		if err := s.Index(ctx, t); err != nil {
			return err
		}
	}

	s.mu.Lock()
	stale := make([]string, 0)
	for id := range s.templates {
		if _, ok := wanted[id]; !ok {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(s.templates, id)
	}
	s.mu.Unlock()

	if len(stale) > 0 {
		return s.vectors.Delete(ctx, s.collection, stale)
	}
	return nil
}

// Get returns the template indexed under id.
func (s *Store) Get(id string) (gatewaytypes.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	return t, ok
}

// All returns every indexed template in a deterministic (id-sorted) order.
func (s *Store) All() []gatewaytypes.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gatewaytypes.Template, 0, len(s.templates))
	for _, id := range sortedKeys(s.templates) {
		out = append(out, s.templates[id])
	}
	return out
}

// Len reports how many templates are indexed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// EmbedQuery embeds query with the same provider the library was indexed
// with.
func (s *Store) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.embedder.Embed(ctx, query)
}

// Search returns the topK nearest templates to vector, similarity expressed
// as the vectorstore's cosine score (which lies in [-1,1]; negative scores
// are clamped to 0 here).
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]Candidate, error) {
	matches, err := s.vectors.Search(ctx, s.collection, vector, topK)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		t, ok := s.templates[m.ID]
		if !ok {
			continue
		}
		sim := m.Score
		if sim < 0 {
			sim = 0
		}
		out = append(out, Candidate{Template: t, Similarity: sim})
	}
	return out, nil
}

// SearchText runs the pure-text Jaccard fallback search used when embedding
// the query fails.
func (s *Store) SearchText(query string, topK int) []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Candidate, 0, len(s.templates))
	for _, id := range sortedKeys(s.templates) {
		t := s.templates[id]
		out = append(out, Candidate{Template: t, Similarity: JaccardSimilarity(query, t.EmbeddingText)})
	}
	// simple selection sort for topK, library sizes are small
	for i := 0; i < len(out) && i < topK; i++ {
		best := i
		for j := i + 1; j < len(out); j++ {
			if out[j].Similarity > out[best].Similarity {
				best = j
			}
		}
		out[i], out[best] = out[best], out[i]
	}
	if topK > len(out) {
		topK = len(out)
	}
	return out[:topK]
}
