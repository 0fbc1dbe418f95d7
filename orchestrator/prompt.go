package orchestrator

import (
	"fmt"
	"strings"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// mergeResults preserves adapter order (stable), stamps each ContextItem
// with its source adapter, and performs no deduplication at this layer.
func mergeResults(results []gatewaytypes.AdapterResult) []gatewaytypes.ContextItem {
	var merged []gatewaytypes.ContextItem
	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, item := range r.Data {
			item.SourceAdapter = r.AdapterName
			merged = append(merged, item)
		}
	}
	return merged
}

// buildSystemPrompt renders the merged context into a system message the
// LLM can ground its answer in. An empty merged slice yields a bare prompt
// so the gateway still answers from the model alone rather than blocking
// the request when every adapter comes back empty or failed.
func buildSystemPrompt(merged []gatewaytypes.ContextItem) string {
	if len(merged) == 0 {
		return "You are a helpful assistant. No additional context was retrieved for this request; answer from your own knowledge and say so if you are unsure."
	}

	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. Use the following retrieved context to answer the user's question. Cite sources by their adapter name when relevant.\n\n")
	for i, item := range merged {
		fmt.Fprintf(&sb, "[%d] (source: %s, confidence: %.2f)\n%s\n\n", i+1, item.SourceAdapter, item.Confidence, item.Content)
	}
	return sb.String()
}

// anyResultFound reports whether merging produced any usable context.
// mergeResults already drops unsuccessful adapter results, so this is a
// length check, kept as a named predicate for readability at call sites.
func anyResultFound(merged []gatewaytypes.ContextItem) bool {
	return len(merged) > 0
}
