package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token value for use as a cache key. The fixed-size
// key is shorter than the raw token and keeps raw credentials out of the
// cache keyspace.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
