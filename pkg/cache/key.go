package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// CacheKey identifies a cached document by the inputs that shape it.
type CacheKey struct {
	// URL is the absolute request URL exactly as requested
	URL string

	// Rendered is true when the document was materialized by executing its scripts
	Rendered bool
}

// String generates the identity string the digest is computed from.
// Format: <url>-hasRenderedJS-<true|false>
//
// Example:
//
//	https://example.com/docs-hasRenderedJS-false
func (k CacheKey) String() string {
	return k.URL + "-hasRenderedJS-" + strconv.FormatBool(k.Rendered)
}

// Digest returns the hex encoded SHA-256 of the key string. It names both
// on-disk artifacts of an entry.
func (k CacheKey) Digest() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}
