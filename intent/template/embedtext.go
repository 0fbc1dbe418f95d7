// Package template implements the template store: persistence and semantic
// search over the NL→operation template library the intent engine matches
// queries against.
package template

import (
	"sort"
	"strings"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// BuildEmbeddingText produces the canonical embedding input for a
// template: a normalized concatenation of description, all nl_examples,
// all tags, the space-separated parameter names, the semantic tag fields,
// and any declared synonyms. Deterministic so re-indexing the same
// template produces the same text.
func BuildEmbeddingText(t gatewaytypes.Template) string {
	parts := make([]string, 0, 8)
	parts = append(parts, t.Description)
	parts = append(parts, t.NLExamples...)
	parts = append(parts, t.Tags...)

	names := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		names = append(names, p.Name)
	}
	if len(names) > 0 {
		parts = append(parts, strings.Join(names, " "))
	}

	st := t.SemanticTags
	if st.Action != "" {
		parts = append(parts, st.Action)
	}
	if st.PrimaryEntity != "" {
		parts = append(parts, st.PrimaryEntity)
	}
	if st.SecondaryEntity != "" {
		parts = append(parts, st.SecondaryEntity)
	}
	parts = append(parts, st.Qualifiers...)
	parts = append(parts, st.Synonyms...)

	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, " ")
}

// jaccardTokens splits s into a normalized, deduplicated token set for the
// pure-text fallback similarity.
func jaccardTokens(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:'\"()[]{}")
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

// JaccardSimilarity returns the Jaccard index between the token sets of a
// and b, used when the embedding provider fails.
func JaccardSimilarity(a, b string) float64 {
	setA := jaccardTokens(a)
	setB := jaccardTokens(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// sortedKeys is a small helper used by the store to produce deterministic
// iteration order for tests and reload summaries.
func sortedKeys(m map[string]gatewaytypes.Template) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
