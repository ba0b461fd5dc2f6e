package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key builds a cache key for a query identifier and its parameters.
// Parameters are hashed so arbitrary shapes produce stable opaque keys that
// still share the query identifier as an invalidation prefix.
func Key(queryID string, params any) string {
	if params == nil {
		return queryID
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return queryID
	}

	hash := sha256.Sum256(raw)
	return queryID + ":" + hex.EncodeToString(hash[:8])
}

// ScopedKey builds a cache key for a query identifier scoped to a single
// entity id, e.g. one pilot's compliance rollup
func ScopedKey(queryID, id string) string {
	return queryID + ":" + id
}
