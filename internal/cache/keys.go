package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Key joins namespace parts with ':'. Parts must not contain ':' themselves;
// IDs and fixed labels are the expected inputs.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// FilterKey derives a deterministic cache key from a filter set so equal
// filters from different endpoints share an entry. encoding/json writes map
// keys in sorted order, which makes the marshal canonical.
func FilterKey(prefix string, filters map[string]any) string {
	if len(filters) == 0 {
		return prefix
	}
	canonical, err := json.Marshal(filters)
	if err != nil {
		return prefix
	}
	sum := sha1.Sum(canonical)
	return prefix + ":" + hex.EncodeToString(sum[:])
}
