package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSubstituteJSONPlaceholders_EncodesTypedValues(t *testing.T) {
	out := substituteJSONPlaceholders(`{"filter": {"customer_id": {{customer_id}}, "name": "{name}"}}`, map[string]any{
		"customer_id": 456,
		"name":        "Alice",
	})
	assert.JSONEq(t, `{"filter": {"customer_id": 456, "name": "Alice"}}`, out)
}

func TestSubstituteJSONPlaceholders_MissingParamBecomesNull(t *testing.T) {
	out := substituteJSONPlaceholders(`{"filter": {"id": {{id}}}}`, map[string]any{})
	assert.JSONEq(t, `{"filter": {"id": null}}`, out)
}

func TestConvertExtendedJSON_ConvertsOidMarker(t *testing.T) {
	oid := bson.NewObjectID()
	filter := map[string]any{"_id": map[string]any{"$oid": oid.Hex()}}

	out := convertExtendedJSON(filter)
	require.IsType(t, bson.ObjectID{}, out["_id"])
	assert.Equal(t, oid, out["_id"])
}

func TestConvertExtendedJSON_LeavesOrdinaryValuesAlone(t *testing.T) {
	out := convertExtendedJSON(map[string]any{"status": "open"})
	assert.Equal(t, "open", out["status"])
}

func TestNormalizeMongoSort_ListOfMaps(t *testing.T) {
	doc := normalizeMongoSort([]any{
		map[string]any{"created_at": "desc"},
	})
	require.Len(t, doc, 1)
	assert.Equal(t, "created_at", doc[0].Key)
	assert.Equal(t, -1, doc[0].Value)
}

func TestNormalizeMongoSort_ListOfPairs(t *testing.T) {
	doc := normalizeMongoSort([]any{
		[]any{"created_at", -1.0},
	})
	require.Len(t, doc, 1)
	assert.Equal(t, "created_at", doc[0].Key)
	assert.Equal(t, -1, doc[0].Value)
}
