package intent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

const (
	listFieldTruncateAt  = 500
	tableCellTruncateAt  = 40
)

// shapeResult formats rows per tpl.ResultFormat and wraps the rendering
// into one ContextItem carrying the match confidence and the raw rows for
// downstream LLM use.
func shapeResult(tpl gatewaytypes.Template, params map[string]any, rows []map[string]any, confidence float64) gatewaytypes.ContextItem {
	var content string
	switch tpl.ResultFormat {
	case gatewaytypes.ResultFormatTable:
		content = shapeTable(rows, tpl.DisplayFields)
	case gatewaytypes.ResultFormatSummary:
		content = shapeSummary(rows)
	default:
		content = shapeList(rows, tpl.DisplayFields)
	}

	item := gatewaytypes.ContextItem{
		Content:    content,
		Confidence: confidence,
		Metadata: map[string]any{
			"template_id": tpl.ID,
			"parameters":  params,
			"row_count":   len(rows),
			"rows":        rows,
			"success":     true,
		},
	}
	item.ClampConfidence()
	return item
}

// shapeFailure builds the ContextItem the engine returns when validation
// fails: a single ContextItem with success=false metadata and a
// human-readable explanation.
func shapeFailure(tpl gatewaytypes.Template, reason string) gatewaytypes.ContextItem {
	return gatewaytypes.ContextItem{
		Content: reason,
		Metadata: map[string]any{
			"template_id": tpl.ID,
			"success":     false,
			"reason":      reason,
		},
	}
}

// noMatchItem is returned when no template clears the confidence
// threshold: confidence=0 and a "no matching template" marker.
func noMatchItem() gatewaytypes.ContextItem {
	return gatewaytypes.ContextItem{
		Content:    "No matching operation was found for this request.",
		Confidence: 0,
		Metadata: map[string]any{
			"success": false,
			"reason":  NoMatchMarker,
		},
	}
}

func displayFieldsOrAll(rows []map[string]any, declared []string) []string {
	if len(declared) > 0 {
		return declared
	}
	if len(rows) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var fields []string
	for _, row := range rows {
		for k := range row {
			if strings.HasPrefix(k, "_") || seen[k] {
				continue
			}
			seen[k] = true
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

// shapeList renders numbered items, each listing displayFields (or every
// non-underscored field), with long string values ellipsis-truncated.
func shapeList(rows []map[string]any, declared []string) string {
	if len(rows) == 0 {
		return "No results."
	}
	fields := displayFieldsOrAll(rows, declared)
	var sb strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&sb, "%d. ", i+1)
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			v := row[f]
			parts = append(parts, fmt.Sprintf("%s: %s", f, truncateValue(v, listFieldTruncateAt)))
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// shapeTable renders a header row of displayFields followed by one row per
// result, cells truncated to a fixed display width.
func shapeTable(rows []map[string]any, declared []string) string {
	if len(rows) == 0 {
		return "No results."
	}
	fields := displayFieldsOrAll(rows, declared)
	var sb strings.Builder
	sb.WriteString(strings.Join(fields, " | "))
	sb.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, 0, len(fields))
		for _, f := range fields {
			cells = append(cells, truncateValue(row[f], tableCellTruncateAt))
		}
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// shapeSummary passes the single-object result verbatim for prose
// rendering downstream.
func shapeSummary(rows []map[string]any) string {
	if len(rows) == 0 {
		return "{}"
	}
	return fmt.Sprint(rows[0])
}

func truncateValue(v any, max int) string {
	s := toDisplayString(v)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
