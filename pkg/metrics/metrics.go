// Package metrics exposes the Prometheus registry shared by webreader.
// Metrics are defined next to the code that records them (cache, render,
// fetch, ratelimit) via promauto; this package only serves them.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Server serves /metrics on its own listener, apart from the MCP transport.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// Metrics Documentation
//
// Cache (pkg/cache):
//   - webreader_cache_hits_total (Counter)
//   - webreader_cache_misses_total{reason} (Counter): absent, corrupt, stale
//   - webreader_cache_writes_total (Counter)
//   - webreader_cache_written_bytes_total (Counter)
//   - webreader_cache_errors_total{operation} (Counter): put, clear, sweep
//   - webreader_cache_sweeps_total (Counter)
//   - webreader_cache_evictions_total (Counter)
//
// Rendering (pkg/render):
//   - webreader_render_total{engine, outcome} (Counter)
//   - webreader_render_duration_seconds{engine} (Histogram)
//   - webreader_render_settle_samples_total (Counter)
//   - webreader_render_queue_depth (Gauge)
//
// Fetching (pkg/fetch):
//   - webreader_fetch_requests_total{mode, outcome} (Counter)
//   - webreader_fetch_duration_seconds{mode} (Histogram)
//   - webreader_fetch_errors_total{class} (Counter)
//
// Rate limiting (pkg/ratelimit):
//   - webreader_ratelimit_waits_total{reason} (Counter)
//   - webreader_ratelimit_wait_seconds (Histogram)
//   - webreader_ratelimit_backoffs_total (Counter)
//   - webreader_ratelimit_hosts (Gauge)
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(webreader_cache_hits_total[5m])) /
//	(sum(rate(webreader_cache_hits_total[5m])) + sum(rate(webreader_cache_misses_total[5m])))
//
//	# Render timeouts
//	rate(webreader_render_total{outcome="timeout"}[5m])
//
//	# P95 fetch latency by mode
//	histogram_quantile(0.95, sum by (le, mode) (rate(webreader_fetch_duration_seconds_bucket[5m])))
