package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/llm"
	"github.com/orbit-gateway/orbit/types"
)

// Stage two of the intent pipeline: parameter extraction. Each declared
// parameter is resolved in order: cheap deterministic pattern extraction,
// then LLM extraction for any still-missing required parameter, then
// declared defaults.

var (
	integerRe = regexp.MustCompile(`-?\d+`)
	decimalRe = regexp.MustCompile(`\$?\d+(\.\d{2})?`)
	isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	emailRe   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	periodRe  = regexp.MustCompile(`(?i)(\d+)\s*(day|week|month)s?`)
)

// DefaultNamedPeriods returns the vocabulary of named time periods, mapping
// each NL phrase to an integer day count.
func DefaultNamedPeriods() map[string]int {
	return map[string]int{
		"today":         0,
		"yesterday":     1,
		"last week":     7,
		"last month":    30,
		"last 7 days":   7,
		"last 30 days":  30,
		"last 90 days":  90,
		"last year":     365,
	}
}

// Extractor resolves a template's declared parameters against a query.
type Extractor struct {
	provider     llm.Provider
	namedPeriods map[string]int
}

// NewExtractor constructs an Extractor. provider may be nil, in which case
// the LLM-extraction stage is skipped and any still-missing required
// parameter falls straight through to validation (which will reject it).
func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider, namedPeriods: DefaultNamedPeriods()}
}

// Extract runs the full three-step resolution for every parameter tpl
// declares.
func (e *Extractor) Extract(ctx context.Context, query string, tpl gatewaytypes.Template) (map[string]any, error) {
	params := make(map[string]any, len(tpl.Parameters))
	var missingRequired []gatewaytypes.ParameterSpec

	for _, spec := range tpl.Parameters {
		if v, ok := e.patternExtract(query, spec); ok {
			params[spec.Name] = v
			continue
		}
		if spec.Required {
			missingRequired = append(missingRequired, spec)
		}
	}

	if len(missingRequired) > 0 && e.provider != nil {
		extracted, err := e.llmExtract(ctx, query, missingRequired)
		if err == nil {
			for k, v := range extracted {
				if v != nil {
					params[k] = v
				}
			}
		}
	}

	for _, spec := range tpl.Parameters {
		if _, ok := params[spec.Name]; !ok && spec.Default != nil {
			params[spec.Name] = spec.Default
		}
	}

	return params, nil
}

// patternExtract applies type-driven regexes for the parameter's declared
// type.
func (e *Extractor) patternExtract(query string, spec gatewaytypes.ParameterSpec) (any, bool) {
	switch spec.Type {
	case gatewaytypes.ParamInteger:
		if m := integerRe.FindString(query); m != "" {
			n, err := strconv.Atoi(m)
			if err == nil {
				return n, true
			}
		}
	case gatewaytypes.ParamNumber:
		if m := decimalRe.FindString(query); m != "" {
			clean := strings.TrimPrefix(m, "$")
			f, err := strconv.ParseFloat(clean, 64)
			if err == nil {
				return f, true
			}
		}
	case gatewaytypes.ParamDate:
		if m := isoDateRe.FindString(query); m != "" {
			return m, true
		}
		if days, ok := e.extractNamedPeriodDays(query); ok {
			return days, true
		}
	case gatewaytypes.ParamString:
		if emailHinted(spec) {
			if m := emailRe.FindString(query); m != "" {
				return m, true
			}
		}
		for _, allowed := range spec.AllowedValues {
			if strings.Contains(strings.ToLower(query), strings.ToLower(allowed)) {
				return allowed, true
			}
		}
	case gatewaytypes.ParamBoolean:
		lower := strings.ToLower(query)
		if strings.Contains(lower, "true") || strings.Contains(lower, "yes") {
			return true, true
		}
		if strings.Contains(lower, "false") || strings.Contains(lower, "no") {
			return false, true
		}
	}
	return nil, false
}

func emailHinted(spec gatewaytypes.ParameterSpec) bool {
	name := strings.ToLower(spec.Name)
	return strings.Contains(name, "email") || strings.Contains(strings.ToLower(spec.Description), "email")
}

// extractNamedPeriodDays resolves "last week", "yesterday", and the
// "(\d+)\s*(day|week|month)s?" fallback into a day count (weeks ×7,
// months ×30).
func (e *Extractor) extractNamedPeriodDays(query string) (int, bool) {
	lower := strings.ToLower(query)
	for phrase, days := range e.namedPeriods {
		if strings.Contains(lower, phrase) {
			return days, true
		}
	}
	if m := periodRe.FindStringSubmatch(query); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		switch strings.ToLower(m[2]) {
		case "day":
			return n, true
		case "week":
			return n * 7, true
		case "month":
			return n * 30, true
		}
	}
	return 0, false
}

// llmExtract issues a single structured prompt enumerating the missing
// parameters, parsed as the first balanced `{…}` JSON object in the
// response.
func (e *Extractor) llmExtract(ctx context.Context, query string, missing []gatewaytypes.ParameterSpec) (map[string]any, error) {
	var sb strings.Builder
	sb.WriteString("Extract the following parameters from the user query as a single JSON object. ")
	sb.WriteString("Use null for any parameter you cannot find. Respond with JSON only.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nParameters:\n")
	for _, spec := range missing {
		sb.WriteString(fmt.Sprintf("- %s (type=%s)", spec.Name, spec.Type))
		if spec.Description != "" {
			sb.WriteString(": " + spec.Description)
		}
		if len(spec.AllowedValues) > 0 {
			sb.WriteString(" allowed=" + strings.Join(spec.AllowedValues, ","))
		}
		sb.WriteString("\n")
	}

	temp := float32(0.1)
	resp, err := e.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			types.NewSystemMessage("You extract structured parameters from natural language. Always respond with a single JSON object and nothing else."),
			types.NewUserMessage(sb.String()),
		},
		Temperature: temp,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("intent: LLM extraction returned no choices")
	}

	obj := firstBalancedObject(resp.Choices[0].Message.Content)
	if obj == "" {
		return nil, fmt.Errorf("intent: LLM extraction response had no JSON object")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("intent: parsing LLM extraction JSON: %w", err)
	}
	return raw, nil
}

// firstBalancedObject returns the first balanced {...} substring of s, or
// "" if none is found. Brace-balance parsing of a raw string ignores
// braces inside quoted strings.
func firstBalancedObject(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
