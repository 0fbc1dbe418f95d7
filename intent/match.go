// Package intent implements a multi-stage pipeline translating a
// natural-language query into a concrete backend operation and
// normalizing its result into ContextItems. This file covers the first
// stage, template matching.
package intent

import (
	"context"
	"strings"

	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/intent/template"
)

// NoMatchMarker is the metadata value set when no template clears the
// confidence threshold.
const NoMatchMarker = "no_matching_template"

// MatcherConfig tunes the matching stage.
type MatcherConfig struct {
	MaxTemplates        int
	ConfidenceThreshold float64
	// ActionVerbs maps a surface verb/phrase to the semantic action it
	// implies (e.g. "show" -> "find"), used for the +0.15 reranking boost.
	ActionVerbs map[string]string
}

// DefaultActionVerbs is a small starter vocabulary; adapter configuration
// may extend or replace it per template library.
func DefaultActionVerbs() map[string]string {
	return map[string]string{
		"find":   "find",
		"show":   "find",
		"get":    "find",
		"list":   "find",
		"search": "find",
		"lookup": "find",
		"create": "create",
		"add":    "create",
		"make":   "create",
		"update": "update",
		"change": "update",
		"modify": "update",
		"edit":   "update",
		"delete": "delete",
		"remove": "delete",
		"cancel": "delete",
	}
}

// MatchResult is the outcome of matching one query against the library.
type MatchResult struct {
	Template   gatewaytypes.Template
	Similarity float64
	Accepted   bool
}

// Matcher runs the match stage of the intent pipeline.
type Matcher struct {
	store *template.Store
	cfg   MatcherConfig
}

// NewMatcher constructs a Matcher over store using cfg, filling in
// defaults for zero-valued fields.
func NewMatcher(store *template.Store, cfg MatcherConfig) *Matcher {
	if cfg.MaxTemplates <= 0 {
		cfg.MaxTemplates = 5
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.75
	}
	if cfg.ActionVerbs == nil {
		cfg.ActionVerbs = DefaultActionVerbs()
	}
	return &Matcher{store: store, cfg: cfg}
}

// Match runs the full matching pipeline: embed, search, similarity
// conversion, domain boosts, fallback on embedding failure, and threshold
// acceptance.
func (m *Matcher) Match(ctx context.Context, query string) (MatchResult, error) {
	candidates, err := m.candidates(ctx, query)
	if err != nil {
		return MatchResult{}, err
	}
	if len(candidates) == 0 {
		return MatchResult{Accepted: false}, nil
	}

	best := candidates[0]
	bestBoosted := m.applyBoosts(query, best)
	for _, c := range candidates[1:] {
		boosted := m.applyBoosts(query, c)
		if boosted > bestBoosted {
			best = c
			bestBoosted = boosted
		}
	}

	return MatchResult{
		Template:   best.Template,
		Similarity: bestBoosted,
		Accepted:   bestBoosted >= m.cfg.ConfidenceThreshold,
	}, nil
}

// candidates performs the vector search, falling back to the pure-text
// Jaccard similarity when embedding the query fails.
func (m *Matcher) candidates(ctx context.Context, query string) ([]template.Candidate, error) {
	vec, err := m.store.EmbedQuery(ctx, query)
	if err != nil {
		return m.store.SearchText(query, m.cfg.MaxTemplates), nil
	}
	return m.store.Search(ctx, vec, m.cfg.MaxTemplates)
}

// applyBoosts adds +0.20 for a primary-entity/synonym mention and +0.15
// for a mapped action verb, capped at 1.0.
func (m *Matcher) applyBoosts(query string, c template.Candidate) float64 {
	sim := c.Similarity
	q := strings.ToLower(query)
	st := c.Template.SemanticTags

	entityHit := st.PrimaryEntity != "" && containsWord(q, st.PrimaryEntity)
	if !entityHit {
		for _, syn := range st.Synonyms {
			if containsWord(q, syn) {
				entityHit = true
				break
			}
		}
	}
	if entityHit {
		sim += 0.20
	}

	if st.Action != "" {
		for verb, action := range m.cfg.ActionVerbs {
			if action == st.Action && containsWord(q, verb) {
				sim += 0.15
				break
			}
		}
	}

	if sim > 1.0 {
		sim = 1.0
	}
	return sim
}

// containsWord reports whether needle (already expected lowercase-able)
// appears in haystack as a case-insensitive substring. The source's intent
// retrievers match on substring rather than tokenized word boundaries, so
// this mirrors that rather than over-engineering a tokenizer.
func containsWord(haystack, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	return strings.Contains(haystack, needle)
}
