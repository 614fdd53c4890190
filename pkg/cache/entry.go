package cache

import (
	"time"
)

// Metadata is the JSON record stored next to every payload.
type Metadata struct {
	// URL is the source URL the payload was fetched from
	URL string `json:"url"`

	// Timestamp is when the payload was captured
	Timestamp time.Time `json:"timestamp"`

	// ContentType is the content type reported by the origin or renderer
	ContentType string `json:"contentType"`
}

// CacheEntry is a cached document: the raw payload and its metadata.
type CacheEntry struct {
	// Data is the fetched body
	Data []byte

	Metadata
}

// Age returns how long ago the entry was captured, relative to now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// IsExpired reports whether the entry is stale for the given ttl.
// An entry is stale once its age reaches the ttl.
func (e *CacheEntry) IsExpired(now time.Time, ttl time.Duration) bool {
	return e.Age(now) >= ttl
}

// Remaining returns the ttl left before the entry goes stale.
// Returns 0 if already expired.
func (e *CacheEntry) Remaining(now time.Time, ttl time.Duration) time.Duration {
	left := ttl - e.Age(now)
	if left < 0 {
		return 0
	}
	return left
}

// EntryInfo describes a stored entry without its payload.
type EntryInfo struct {
	Digest string `json:"digest"`
	Size   int64  `json:"size"`

	Metadata
}
