package intent

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// newFindOptions assembles a *options.FindOptionsBuilder from the
// normalized pieces of a rendered find operation, omitting any that
// weren't specified in the template.
func newFindOptions(projection map[string]any, sort bson.D, skip, limit *int64) *options.FindOptionsBuilder {
	opts := options.Find()
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	if skip != nil {
		opts.SetSkip(*skip)
	}
	if limit != nil {
		opts.SetLimit(*limit)
	}
	return opts
}

// decodeCursor drains cur into plain maps, the backend-agnostic row shape
// response shaping operates on.
func decodeCursor(ctx context.Context, cur *mongo.Cursor) ([]map[string]any, error) {
	var out []map[string]any
	for cur.Next(ctx) {
		var doc map[string]any
		if err := cur.Decode(&doc); err != nil {
			return nil, &BackendError{Backend: "mongo", Cause: err}
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, &BackendError{Backend: "mongo", Cause: err}
	}
	return out, nil
}
