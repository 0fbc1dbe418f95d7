// Package retriever implements direct retrieval adapters: similarity or
// keyword lookup against a single vector store collection, with no
// template matching or parameter extraction involved.
package retriever

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/orbit-gateway/orbit/embedclient"
	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/llm/retrieval"
	"github.com/orbit-gateway/orbit/vectorstore"
)

// Mode selects how a Retriever resolves a query to candidate chunks.
type Mode string

// Mode values.
const (
	ModeSimilarity Mode = "similarity"
	ModeKeyword    Mode = "keyword"
)

// Config tunes one Retriever instance.
type Config struct {
	Collection        string
	Mode              Mode
	TopK              int
	RelevanceThreshold float64
	// Rerank enables a second-pass word-overlap/proximity rerank of
	// similarity-mode results before the relevance threshold is applied.
	Rerank bool
}

// Retriever performs direct retrieval over one vectorstore collection,
// implementing executor.Adapter.
type Retriever struct {
	store    vectorstore.Store
	embedder embedclient.Provider
	chunks   map[string]gatewaytypes.Chunk // keyword-mode fallback corpus, keyed by chunk id
	reranker retrieval.Reranker
	cfg      Config
}

// New constructs a Retriever over store using embedder for similarity
// queries. chunks is the in-process corpus keyword mode scans; it may be
// nil when Mode is ModeSimilarity.
func New(store vectorstore.Store, embedder embedclient.Provider, chunks map[string]gatewaytypes.Chunk, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSimilarity
	}
	var reranker retrieval.Reranker
	if cfg.Rerank {
		reranker = retrieval.NewSimpleReranker(zap.NewNop())
	}
	return &Retriever{store: store, embedder: embedder, chunks: chunks, reranker: reranker, cfg: cfg}
}

// Retrieve implements executor.Adapter. Every returned ContextItem has
// confidence in [0,1]; items below RelevanceThreshold are dropped.
func (r *Retriever) Retrieve(ctx context.Context, query string, options map[string]any) ([]gatewaytypes.ContextItem, error) {
	switch r.cfg.Mode {
	case ModeKeyword:
		return r.retrieveKeyword(query), nil
	default:
		return r.retrieveSimilarity(ctx, query)
	}
}

func (r *Retriever) retrieveSimilarity(ctx context.Context, query string) ([]gatewaytypes.ContextItem, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := r.store.Search(ctx, r.cfg.Collection, vec, r.cfg.TopK)
	if err != nil {
		return nil, err
	}

	if r.reranker != nil {
		matches, err = r.rerankMatches(ctx, query, matches)
		if err != nil {
			return nil, err
		}
	}

	items := make([]gatewaytypes.ContextItem, 0, len(matches))
	for _, m := range matches {
		if m.Score < r.cfg.RelevanceThreshold {
			continue
		}
		items = append(items, toContextItem(m))
	}
	return items, nil
}

// rerankMatches runs the vector-search results through a second word-overlap
// pass and folds the rerank score back into Match.Score, replacing it
// rather than averaging: the rerank score is already a blend of exact
// match, term frequency and proximity against the query, a stronger
// relevance signal for short, template-shaped queries than raw cosine
// similarity against an embedding.
func (r *Retriever) rerankMatches(ctx context.Context, query string, matches []vectorstore.Match) ([]vectorstore.Match, error) {
	byID := make(map[string]vectorstore.Match, len(matches))
	results := make([]retrieval.RetrievalResult, len(matches))
	for i, m := range matches {
		content, _ := m.Metadata["content"].(string)
		byID[m.ID] = m
		results[i] = retrieval.RetrievalResult{
			Document:   retrieval.Document{ID: m.ID, Content: content, Metadata: m.Metadata},
			FinalScore: m.Score,
		}
	}

	reranked, err := r.reranker.Rerank(ctx, query, results)
	if err != nil {
		return nil, err
	}

	out := make([]vectorstore.Match, 0, len(reranked))
	for _, res := range reranked {
		m, ok := byID[res.Document.ID]
		if !ok {
			continue
		}
		m.Score = res.FinalScore
		out = append(out, m)
	}
	return out, nil
}

func (r *Retriever) retrieveKeyword(query string) []gatewaytypes.ContextItem {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		chunk gatewaytypes.Chunk
		score float64
	}
	var results []scored
	for _, chunk := range r.chunks {
		score := keywordScore(tokens, chunk.Content)
		if score <= 0 {
			continue
		}
		results = append(results, scored{chunk: chunk, score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	if len(results) > r.cfg.TopK {
		results = results[:r.cfg.TopK]
	}

	items := make([]gatewaytypes.ContextItem, 0, len(results))
	for _, res := range results {
		if res.score < r.cfg.RelevanceThreshold {
			continue
		}
		item := gatewaytypes.ContextItem{
			Content:     res.chunk.Content,
			Confidence:  res.score,
			ChunkID:     res.chunk.ChunkID,
			SourceURL:   res.chunk.SourceURL,
			RawDocument: res.chunk.Content,
			Metadata:    res.chunk.Metadata,
		}
		item.ClampConfidence()
		items = append(items, item)
	}
	return items
}

func toContextItem(m vectorstore.Match) gatewaytypes.ContextItem {
	content, _ := m.Metadata["content"].(string)
	sourceURL, _ := m.Metadata["source_url"].(string)
	item := gatewaytypes.ContextItem{
		Content:     content,
		Confidence:  m.Score,
		ChunkID:     m.ID,
		SourceURL:   sourceURL,
		RawDocument: content,
		Metadata:    m.Metadata,
	}
	item.ClampConfidence()
	return item
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// keywordScore is the fraction of query tokens found in content, a simple
// Jaccard-style overlap consistent with the Jaccard fallback used by the
// template matcher (see intent/template.JaccardSimilarity) when no
// embedding provider is configured.
func keywordScore(tokens []string, content string) float64 {
	lower := strings.ToLower(content)
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / float64(len(tokens))
}
