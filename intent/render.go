package intent

import (
	"fmt"
	"regexp"
	"strings"
)

var conditionalBlockRe = regexp.MustCompile(`(?s)\{%\s*if\s+(\w+)\s*%\}(.*?)\{%\s*endif\s*%\}`)

// renderConditionals strips every {% if param %} ... {% endif %} block whose
// param resolved to nil or absent, and otherwise keeps the block's inner
// text in place.
func renderConditionals(text string, params map[string]any) string {
	return conditionalBlockRe.ReplaceAllStringFunc(text, func(block string) string {
		m := conditionalBlockRe.FindStringSubmatch(block)
		name, inner := m[1], m[2]
		if v, ok := params[name]; ok && v != nil {
			return inner
		}
		return ""
	})
}

// likeWildcard ensures a LIKE-bound value carries % wildcards on both ends
// when the caller didn't already supply them.
func likeWildcard(s string) string {
	if strings.Contains(s, "%") {
		return s
	}
	return "%" + s + "%"
}

// isLikeParam reports whether name is bound within 40 characters after a
// "LIKE" keyword anywhere in text, a cheap heuristic for deciding whether a
// LIKE-bound parameter lacking % wildcards needs them added.
func isLikeParam(text, name string) bool {
	lower := strings.ToLower(text)
	for _, idx := range likeIndexes(lower) {
		end := idx + 4 + 40
		if end > len(text) {
			end = len(text)
		}
		if strings.Contains(text[idx+4:end], name) {
			return true
		}
	}
	return false
}

func likeIndexes(lower string) []int {
	var out []int
	offset := 0
	for {
		i := strings.Index(lower[offset:], "like")
		if i == -1 {
			return out
		}
		out = append(out, offset+i)
		offset += i + 4
	}
}

var bracePlaceholderRe = regexp.MustCompile(`\{\{(\w+)\}\}|\{(\w+)\}`)

// renderBracePlaceholders substitutes {name} and {{name}} occurrences in
// text with the string form of params[name]: single-brace is direct
// substitution, double-brace goes through the configured template
// renderer — both resolve identically here since neither requires control
// flow beyond a lookup.
func renderBracePlaceholders(text string, params map[string]any) string {
	return bracePlaceholderRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := bracePlaceholderRe.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		v, ok := params[name]
		if !ok || v == nil {
			return m
		}
		return toDisplayString(v)
	})
}

func toDisplayString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
