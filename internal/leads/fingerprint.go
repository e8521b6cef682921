// Package leads holds the pure lead-domain logic: identity fingerprints,
// contact normalization and score computation. Nothing here touches the
// database or the network.
package leads

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Identity is the subset of lead fields that participate in duplicate
// detection. Fields are matched case-insensitively and ignoring
// surrounding whitespace.
type Identity struct {
	Name   string
	Handle string
	Email  string
	URL    string
}

// Fingerprint derives the stable dedupe key for an identity: the present
// fields, lowercased and trimmed, joined with "|" and hashed. Two records
// that agree on their present fields collide on purpose. An identity with
// no fields at all has no fingerprint and returns "".
func Fingerprint(id Identity) string {
	parts := make([]string, 0, 4)
	for _, raw := range []string{id.Name, id.Handle, id.Email, id.URL} {
		v := strings.ToLower(strings.TrimSpace(raw))
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	h := hex.EncodeToString(sum[:])
	if len(h) > 64 {
		h = h[:64]
	}
	return h
}
