// Package cache provides the on-disk document cache behind the fetch engine.
//
// Entries are content addressed. A request's identity, its absolute URL plus
// whether scripts were rendered, is hashed with SHA-256 and the hex digest
// names two files:
//
//	<root>/<namespace>/<digest>        raw payload bytes
//	<root>/<namespace>/<digest>.meta   {"url": ..., "timestamp": ..., "contentType": ...}
//
// # Basic Usage
//
//	store, err := cache.NewStore(cache.StoreConfig{
//		Root: "/var/cache/webreader",
//		TTL:  time.Hour,
//	})
//
//	key := cache.CacheKey{URL: "https://example.com/", Rendered: false}
//
//	entry, err := store.Get(key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch live, then
//		_ = store.Put(key, body, "text/html")
//	}
//
// # Consistency
//
// Both artifacts are written to temporary files and renamed into place, so a
// reader never observes a partially written file. The pair is not
// transactional: concurrent writers to one key race and the last rename wins.
// A lookup that finds only one artifact, or metadata that does not parse, is a
// miss rather than an error.
//
// # Expiry
//
// Get treats an entry as stale once its age reaches the TTL but never deletes
// it. Deletion is the Janitor's job: after a cache hit the caller invokes
// MaybeSweep, which with a fixed probability (10% by default) scans the
// directory and removes entries whose payload modification time is older than
// the TTL. Keys that are never hit again are only evicted by a sweep triggered
// through some other key, so disk usage has no hard upper bound.
//
// # Metrics
//
//   - webreader_cache_hits_total
//   - webreader_cache_misses_total{reason}
//   - webreader_cache_writes_total
//   - webreader_cache_written_bytes_total
//   - webreader_cache_errors_total{operation}
//   - webreader_cache_sweeps_total
//   - webreader_cache_evictions_total
package cache
