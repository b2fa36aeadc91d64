// Package canon provides the canonical serialization used everywhere a
// hash needs to be stable across re-marshaling: plan hashes and the audit
// hash chain both depend on it producing byte-identical output for
// structurally-equal values regardless of map key order or pointer
// identity.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// JSON renders v as canonical JSON: object keys sorted lexically, no
// insignificant whitespace. encoding/json already sorts map[string]any keys
// during Marshal, so round-tripping through map[string]interface{} is
// sufficient to normalize arbitrary nested structures, including those built
// from typed structs with non-deterministic field ordering in memory.
func JSON(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("canon: normalize: %w", err)
	}
	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	return out, nil
}

// normalize round-trips v through JSON once so that struct field tags,
// omitempty, and nested types all collapse to the same plain
// map[string]interface{} / []interface{} shape before the final Marshal.
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashJSON is the common case: canonicalize v, then hash the result.
func HashJSON(v interface{}) (string, error) {
	b, err := JSON(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}
