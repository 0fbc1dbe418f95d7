package intent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/orbit-gateway/orbit/datasource"
	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// mongoOperation is the rendered shape of a Mongo operation template:
// {query_type ∈ {find,count,aggregate}, filter?, projection?, sort?,
// limit?, skip?, pipeline?}.
type mongoOperation struct {
	QueryType  string         `json:"query_type"`
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       any            `json:"sort,omitempty"`
	Limit      *int64         `json:"limit,omitempty"`
	Skip       *int64         `json:"skip,omitempty"`
	Pipeline   []any          `json:"pipeline,omitempty"`
}

// MongoBackend renders and runs MongoDB operation templates.
type MongoBackend struct {
	source   *datasource.MongoSource
	maxLimit int64
}

// NewMongoBackend wraps a Mongo datasource. maxLimit <= 0 means no clamp.
func NewMongoBackend(source *datasource.MongoSource, maxLimit int64) *MongoBackend {
	return &MongoBackend{source: source, maxLimit: maxLimit}
}

// Execute implements Backend.
func (b *MongoBackend) Execute(ctx context.Context, tpl gatewaytypes.Template, params map[string]any) ([]map[string]any, error) {
	rendered := renderConditionals(tpl.OperationTemplate, params)
	substituted := substituteJSONPlaceholders(rendered, params)

	var op mongoOperation
	if err := json.Unmarshal([]byte(substituted), &op); err != nil {
		return nil, &BackendError{Backend: "mongo", Cause: fmt.Errorf("parsing operation template: %w", err)}
	}

	filter := convertExtendedJSON(op.Filter)
	coll := b.source.Collection(op.Collection)

	limit := op.Limit
	if b.maxLimit > 0 && (limit == nil || *limit > b.maxLimit) {
		limit = &b.maxLimit
	}
	sortDoc := normalizeMongoSort(op.Sort)

	switch op.QueryType {
	case "count":
		n, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			return nil, &BackendError{Backend: "mongo", Cause: err}
		}
		return []map[string]any{{"count": n}}, nil

	case "aggregate":
		cursor, err := coll.Aggregate(ctx, op.Pipeline)
		if err != nil {
			return nil, &BackendError{Backend: "mongo", Cause: err}
		}
		defer cursor.Close(ctx)
		return decodeCursor(ctx, cursor)

	default: // "find"
		findOpts := newFindOptions(op.Projection, sortDoc, op.Skip, limit)
		cursor, err := coll.Find(ctx, filter, findOpts)
		if err != nil {
			return nil, &BackendError{Backend: "mongo", Cause: err}
		}
		defer cursor.Close(ctx)
		return decodeCursor(ctx, cursor)
	}
}

// substituteJSONPlaceholders replaces `"{{name}}"` and `"{name}"` string
// tokens inside a JSON document template with the JSON-encoded form of the
// resolved parameter, so the result remains valid JSON regardless of type.
func substituteJSONPlaceholders(text string, params map[string]any) string {
	return bracePlaceholderRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := bracePlaceholderRe.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		v, ok := params[name]
		if !ok {
			return "null"
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return "null"
		}
		return string(encoded)
	})
}

// convertExtendedJSON walks a decoded JSON document and converts any
// `{"$oid": "..."}` marker into a bson.ObjectID.
func convertExtendedJSON(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = convertExtendedJSONValue(val)
	}
	return out
}

func convertExtendedJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if oid, ok := t["$oid"].(string); ok && len(t) == 1 {
			id, err := bson.ObjectIDFromHex(oid)
			if err == nil {
				return id
			}
		}
		return convertExtendedJSON(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = convertExtendedJSONValue(item)
		}
		return out
	default:
		return v
	}
}

// normalizeMongoSort accepts either a list of {field: direction} objects or
// a list of (field, direction) pairs and normalizes both to a bson.D.
func normalizeMongoSort(sort any) bson.D {
	var doc bson.D
	switch t := sort.(type) {
	case []any:
		for _, entry := range t {
			switch e := entry.(type) {
			case map[string]any:
				for field, dir := range e {
					doc = append(doc, bson.E{Key: field, Value: sortDirection(dir)})
				}
			case []any:
				if len(e) == 2 {
					field, _ := e[0].(string)
					doc = append(doc, bson.E{Key: field, Value: sortDirection(e[1])})
				}
			}
		}
	case map[string]any:
		for field, dir := range t {
			doc = append(doc, bson.E{Key: field, Value: sortDirection(dir)})
		}
	}
	return doc
}

func sortDirection(v any) int {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return -1
		}
		return 1
	case string:
		if n == "desc" || n == "-1" {
			return -1
		}
		return 1
	default:
		return 1
	}
}
