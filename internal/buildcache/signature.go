package buildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// AggregateDigest hashes the ordered sequence of member content digests.
// Skip decisions compare aggregates, so deciding costs O(members) instead
// of re-hashing raw content.
func AggregateDigest(memberDigests []string) string {
	h := sha256.New()
	for _, d := range memberDigests {
		h.Write([]byte(d))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash computes a deterministic hash of any JSON-serializable
// configuration value. Two exports with identical hashes ran with identical
// settings.
func ConfigHash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config for hashing: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
