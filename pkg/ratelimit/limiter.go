package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for host pacing.
var (
	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webreader_ratelimit_waits_total",
		Help: "Total requests delayed before reaching their origin, by reason",
	}, []string{"reason"})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webreader_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a host to accept another request",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
	})

	rateLimitBackoffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webreader_ratelimit_backoffs_total",
		Help: "Total Retry-After pauses recorded for hosts",
	})

	rateLimitHosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webreader_ratelimit_hosts",
		Help: "Hosts with live pacing state",
	})
)

// HostLimiter gates requests per host.
type HostLimiter struct {
	cfg    Config
	hosts  *ttlcache.Cache[string, *hostState]
	logger zerolog.Logger
}

// NewHostLimiter creates a limiter and starts its eviction loop. Call Close
// to stop it.
func NewHostLimiter(cfg Config, logger zerolog.Logger) *HostLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	hosts := ttlcache.New[string, *hostState](
		ttlcache.WithTTL[string, *hostState](cfg.IdleTTL),
	)
	hosts.OnInsertion(func(ctx context.Context, item *ttlcache.Item[string, *hostState]) {
		rateLimitHosts.Inc()
	})
	hosts.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *hostState]) {
		rateLimitHosts.Dec()
	})
	go hosts.Start()

	return &HostLimiter{
		cfg:    cfg,
		hosts:  hosts,
		logger: logger,
	}
}

func (l *HostLimiter) state(host string) *hostState {
	if item := l.hosts.Get(host); item != nil {
		return item.Value()
	}
	item, _ := l.hosts.GetOrSet(host, newHostState(l.cfg))
	return item.Value()
}

// Wait blocks until host may receive another request or ctx ends.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	s := l.state(host)
	start := time.Now()

	if d := s.blockedFor(l.cfg.Now()); d > 0 {
		l.logger.Debug().
			Str("host", host).
			Dur("wait", d).
			Msg("Host paused by Retry-After, waiting")
		rateLimitWaitsTotal.WithLabelValues("retry_after").Inc()

		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for %s: %w", host, ctx.Err())
		}
	}

	if l.cfg.Enabled() {
		if r := s.limiter.Reserve(); r.OK() {
			delay := r.Delay()
			if delay > 0 {
				rateLimitWaitsTotal.WithLabelValues("pacing").Inc()
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					r.Cancel()
					return fmt.Errorf("wait for %s: %w", host, ctx.Err())
				}
			}
		}
	}

	rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Observe records an origin response. 429 and 503 responses carrying
// Retry-After pause the host.
func (l *HostLimiter) Observe(host string, status int, header http.Header) {
	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return
	}

	d, ok := ParseRetryAfter(header.Get("Retry-After"), l.cfg.Now())
	if !ok || d == 0 {
		return
	}

	l.state(host).block(l.cfg.Now().Add(d))
	rateLimitBackoffsTotal.Inc()

	l.logger.Warn().
		Str("host", host).
		Int("status", status).
		Dur("retry_after", d).
		Msg("Origin asked to back off")
}

// BlockedFor returns the remaining Retry-After pause of host.
func (l *HostLimiter) BlockedFor(host string) time.Duration {
	item := l.hosts.Get(host)
	if item == nil {
		return 0
	}
	return item.Value().blockedFor(l.cfg.Now())
}

// Hosts returns the number of hosts with live state.
func (l *HostLimiter) Hosts() int {
	return l.hosts.Len()
}

// Close stops the eviction loop.
func (l *HostLimiter) Close() {
	l.hosts.Stop()
}
