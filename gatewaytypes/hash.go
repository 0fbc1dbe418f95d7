package gatewaytypes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// contentHash produces a stable hex digest of a JSON-marshalable value. Used
// as the explicit hash-of-(name, content) cache key for adapter instances,
// replacing the string-keyed caches the source relied on.
func contentHash(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
