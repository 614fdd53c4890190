package fetch

import (
	"net/http"
	"time"
)

// CacheResponse is the result of a fetch, with its cache status.
type CacheResponse struct {
	Data        []byte
	StatusCode  int
	ContentType string
	Header      http.Header

	// URL is the final document URL after redirects
	URL string

	// Rendered reports whether Data is a rendered DOM
	Rendered bool

	CacheHit bool

	// CacheAge is how old the served entry is; nil unless CacheHit
	CacheAge *time.Duration

	// CacheTTL is the remaining lifetime on a hit and the full TTL otherwise
	CacheTTL *time.Duration
}

// OK reports whether the origin answered with a 2xx status.
func (r *CacheResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
