// Package fetch serves document fetches from the on-disk cache when it can
// and from the origin when it must.
//
// A fetch computes the cache key from the URL and the render flag, returns a
// fresh cache entry when one exists, and otherwise performs a live fetch over
// HTTP or through a render.Renderer. Successful (2xx) live results are stored
// for later requests. Cache hits occasionally trigger a background sweep of
// expired entries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mredig/mcp-webreader/pkg/cache"
	"github.com/mredig/mcp-webreader/pkg/ratelimit"
	"github.com/mredig/mcp-webreader/pkg/render"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultRenderTimeout bounds a render when the config leaves it unset.
const DefaultRenderTimeout = 30 * time.Second

// DefaultHTTPTimeout bounds a plain fetch when no client is supplied.
const DefaultHTTPTimeout = 30 * time.Second

// Config holds the engine configuration.
type Config struct {
	// Store is required
	Store *cache.Store

	// Janitor defaults to one built over Store with default settings
	Janitor *cache.Janitor

	// Renderer serves RenderJS requests; without one they fail with render.ErrRendererUnavailable
	Renderer render.Renderer

	// HTTPClient serves plain requests
	HTTPClient *http.Client

	// Limiter paces outbound requests per host; nil disables pacing
	Limiter *ratelimit.HostLimiter

	RenderTimeout time.Duration

	// UserAgent is sent when the request does not name one
	UserAgent string

	Logger *zerolog.Logger
}

// Engine orchestrates cache lookups, live fetches and persistence.
// It is safe for concurrent use.
type Engine struct {
	store         *cache.Store
	janitor       *cache.Janitor
	renderer      render.Renderer
	httpClient    *http.Client
	limiter       *ratelimit.HostLimiter
	renderTimeout time.Duration
	userAgent     string
	logger        zerolog.Logger
	closed        atomic.Bool
}

// New creates a new fetch engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	logger := log.With().Str("component", "fetch-engine").Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "fetch-engine").Logger()
	}

	janitor := cfg.Janitor
	if janitor == nil {
		janitor = cache.NewJanitor(cfg.Store, cache.JanitorConfig{})
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	renderTimeout := cfg.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = DefaultRenderTimeout
	}

	return &Engine{
		store:         cfg.Store,
		janitor:       janitor,
		renderer:      cfg.Renderer,
		httpClient:    httpClient,
		limiter:       cfg.Limiter,
		renderTimeout: renderTimeout,
		userAgent:     cfg.UserAgent,
		logger:        logger,
	}, nil
}

// Fetch returns the document for req, from the cache when a fresh entry
// exists. Transport errors from the HTTP client are returned as is, renderer
// errors unchanged. Non-2xx responses are returned normally and never cached.
func (e *Engine) Fetch(ctx context.Context, req Request) (resp *CacheResponse, err error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	mode := "http"
	if req.RenderJS {
		mode = "render"
	}

	logger := e.logger.With().
		Str("request_id", uuid.NewString()).
		Str("url", req.URL).
		Bool("render_js", req.RenderJS).
		Logger()

	startTime := time.Now()
	outcome := "error"
	defer func() {
		fetchDuration.WithLabelValues(mode).Observe(time.Since(startTime).Seconds())
		fetchRequestsTotal.WithLabelValues(mode, outcome).Inc()
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if class := classifyError(status, err); class != "" {
			fetchErrorsTotal.WithLabelValues(string(class)).Inc()
			logger.Debug().Str("class", string(class)).Int("status", status).Err(err).Msg("Fetch unsuccessful")
		}
	}()

	// Step 1: Validate
	u, err := parseURL(req.URL, req.RenderJS)
	if err != nil {
		return nil, err
	}

	// the URL is otherwise kept exactly as requested
	key := cache.CacheKey{URL: strings.TrimSpace(req.URL), Rendered: req.RenderJS}

	// Step 2: Check Cache
	if !req.IgnoreCache {
		if hit := e.lookup(key, logger); hit != nil {
			outcome = "hit"
			return hit, nil
		}
	}

	// Step 3: Build Request
	httpReq, err := buildHTTPRequest(ctx, u, req, e.userAgent)
	if err != nil {
		return nil, err
	}

	// Step 4: Pace
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}
	}

	// Step 5: Live Fetch
	logger.Debug().Str("method", httpReq.Method).Msg("Fetching from origin")

	var live *CacheResponse
	if req.RenderJS {
		live, err = e.render(ctx, httpReq)
	} else {
		live, err = e.get(httpReq)
	}
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		e.limiter.Observe(u.Host, live.StatusCode, live.Header)
	}

	// Step 6: Store on success
	if live.OK() {
		outcome = "fetched"
		if err := e.store.Put(key, live.Data, live.ContentType); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache response")
		}
	} else {
		outcome = "non_2xx"
	}

	ttl := e.store.TTL()
	live.CacheTTL = &ttl
	return live, nil
}

// lookup returns a response built from a fresh cache entry, or nil on a miss.
func (e *Engine) lookup(key cache.CacheKey, logger zerolog.Logger) *CacheResponse {
	entry, err := e.store.Get(key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}
		return nil
	}

	now := e.store.Now()
	age := entry.Age(now)
	remaining := entry.Remaining(now, e.store.TTL())

	if e.janitor.MaybeSweep() {
		logger.Debug().Msg("Cache sweep started")
	}

	logger.Debug().Dur("age", age).Dur("ttl", remaining).Msg("Cache hit")

	header := http.Header{}
	if entry.ContentType != "" {
		header.Set("Content-Type", entry.ContentType)
	}

	return &CacheResponse{
		Data:        entry.Data,
		StatusCode:  http.StatusOK,
		ContentType: entry.ContentType,
		Header:      header,
		URL:         entry.URL,
		Rendered:    key.Rendered,
		CacheHit:    true,
		CacheAge:    &age,
		CacheTTL:    &remaining,
	}
}

// get performs a plain HTTP fetch and reads the whole body.
func (e *Engine) get(httpReq *http.Request) (*CacheResponse, error) {
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &CacheResponse{
		Data:        data,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		URL:         resp.Request.URL.String(),
	}, nil
}

// render loads httpReq in the renderer under the render timeout.
func (e *Engine) render(ctx context.Context, httpReq *http.Request) (*CacheResponse, error) {
	if e.renderer == nil {
		return nil, fmt.Errorf("%w: no renderer configured", render.ErrRendererUnavailable)
	}

	res, err := e.renderer.Render(ctx, httpReq, e.renderTimeout)
	if err != nil {
		return nil, err
	}

	finalURL := res.URL
	if finalURL == "" {
		finalURL = httpReq.URL.String()
	}

	header := res.Header
	if header == nil {
		header = http.Header{}
	}

	return &CacheResponse{
		Data:        res.Body,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Header:      header,
		URL:         finalURL,
		Rendered:    true,
	}, nil
}

// ClearCache removes every cached entry.
func (e *Engine) ClearCache() error {
	if err := e.store.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	e.logger.Info().Str("dir", e.store.Dir()).Msg("Cache cleared")
	return nil
}

// Sweep evicts expired entries synchronously.
func (e *Engine) Sweep() cache.SweepResult {
	return e.janitor.Sweep()
}

// Entries lists fresh cache entries.
func (e *Engine) Entries() ([]cache.EntryInfo, error) {
	return e.store.Entries()
}

// TTL returns the cache time-to-live.
func (e *Engine) TTL() time.Duration {
	return e.store.TTL()
}

// Close waits for a running sweep, then releases the renderer and limiter.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.janitor.Wait()

	if e.limiter != nil {
		e.limiter.Close()
	}
	if e.renderer != nil {
		if err := e.renderer.Close(); err != nil {
			return fmt.Errorf("close renderer: %w", err)
		}
	}
	return nil
}
