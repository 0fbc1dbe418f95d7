package intent

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/orbit-gateway/orbit/datasource"
	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// SQLBackend renders and runs generic SQL operation templates: named
// placeholders submitted via the driver's native bind style, never
// string-interpolated.
type SQLBackend struct {
	source *datasource.SQLSource
}

// NewSQLBackend wraps a SQL datasource for generic drivers (Postgres,
// MySQL, SQLite).
func NewSQLBackend(source *datasource.SQLSource) *SQLBackend {
	return &SQLBackend{source: source}
}

// Execute implements Backend.
func (b *SQLBackend) Execute(ctx context.Context, tpl gatewaytypes.Template, params map[string]any) ([]map[string]any, error) {
	rendered := renderConditionals(tpl.OperationTemplate, params)
	bindArgs := applyLikeWildcards(rendered, params)

	query, args, err := sqlx.Named(rendered, bindArgs)
	if err != nil {
		return nil, &BackendError{Backend: "sql", Cause: err}
	}
	query = sqlx.Rebind(sqlx.BindType(b.source.Driver()), query)

	rows, err := b.source.RawDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &BackendError{Backend: "sql", Cause: err}
	}
	defer rows.Close()

	return scanRows(rows)
}

// DuckDBBackend renders SQL templates using `%(name)s` placeholders and
// DuckDB's positional (`?`) bind style.
type DuckDBBackend struct {
	source *datasource.SQLSource
}

// NewDuckDBBackend wraps a SQL datasource opened against a DuckDB file or
// in-memory database (selection precedence handled by
// datasource.SQLConfig.ResolveDuckDBTarget at connection time).
func NewDuckDBBackend(source *datasource.SQLSource) *DuckDBBackend {
	return &DuckDBBackend{source: source}
}

// Execute implements Backend.
func (b *DuckDBBackend) Execute(ctx context.Context, tpl gatewaytypes.Template, params map[string]any) ([]map[string]any, error) {
	rendered := renderConditionals(tpl.OperationTemplate, params)
	bindArgs := applyLikeWildcards(rendered, params)

	query, args := rewriteNamedToPositional(rendered, bindArgs)

	rows, err := b.source.RawDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &BackendError{Backend: "duckdb", Cause: err}
	}
	defer rows.Close()

	return scanRows(rows)
}

// applyLikeWildcards returns a copy of params with % wildcards applied to
// any string value bound to a LIKE clause that doesn't already carry one.
func applyLikeWildcards(renderedTemplate string, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok && isLikeParam(renderedTemplate, k) {
			out[k] = likeWildcard(s)
			continue
		}
		out[k] = v
	}
	return out
}

var duckNamedPlaceholderRe = regexp.MustCompile(`%\(\w+\)s`)

// rewriteNamedToPositional rewrites every `%(name)s` placeholder in text to
// DuckDB's positional `?` form, assembling the argument list in the textual
// order the placeholders appear.
func rewriteNamedToPositional(text string, params map[string]any) (string, []any) {
	var args []any
	out := duckNamedPlaceholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[2 : len(m)-2] // strip "%(" prefix and ")s" suffix
		args = append(args, params[name])
		return "?"
	})
	return out, args
}

// scanRows materializes a *sql.Rows result into plain maps, the
// backend-agnostic row shape response shaping operates on.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, &BackendError{Backend: "sql", Cause: err}
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, &BackendError{Backend: "sql", Cause: err}
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeSQLValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &BackendError{Backend: "sql", Cause: err}
	}
	return out, nil
}

// normalizeSQLValue converts driver-native decimal/byte representations to
// JSON-safe forms: decimals → float; dates already arrive as time.Time
// from most drivers and encoding/json renders those as RFC3339 without
// help.
func normalizeSQLValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return t
	}
}
