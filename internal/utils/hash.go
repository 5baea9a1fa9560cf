package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"strings"
)

func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// ShortDigest joins parts with "|" and returns the first 16 hex chars of their sha256.
func ShortDigest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}
