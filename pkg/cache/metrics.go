package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups served from disk
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webreader_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks lookups that fell through to a live fetch
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webreader_cache_misses_total",
			Help: "Total number of cache misses by reason",
		},
		[]string{"reason"}, // "absent", "corrupt", "stale"
	)

	// CacheWrites tracks entries written
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webreader_cache_writes_total",
			Help: "Total number of cache entries written",
		},
	)

	// CacheWrittenBytes tracks payload bytes written
	CacheWrittenBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webreader_cache_written_bytes_total",
			Help: "Total payload bytes written to the cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webreader_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "put", "clear", "sweep"
	)

	// CacheSweeps tracks janitor sweeps started
	CacheSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webreader_cache_sweeps_total",
			Help: "Total number of expired-entry sweeps",
		},
	)

	// CacheEvictions tracks entries removed by sweeps
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webreader_cache_evictions_total",
			Help: "Total number of expired entries removed by sweeps",
		},
	)
)
