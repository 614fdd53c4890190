package main

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mredig/mcp-webreader/pkg/batch"
	"github.com/mredig/mcp-webreader/pkg/cache"
	"github.com/mredig/mcp-webreader/pkg/config"
	"github.com/mredig/mcp-webreader/pkg/fetch"
	"github.com/mredig/mcp-webreader/pkg/logging"
	"github.com/mredig/mcp-webreader/pkg/ratelimit"
	"github.com/mredig/mcp-webreader/pkg/render"
	"github.com/mredig/mcp-webreader/pkg/tools"
)

// app is the fully wired engine for one process.
type app struct {
	cfg    config.Config
	store  *cache.Store
	engine *fetch.Engine
}

// newApp wires store, janitor, renderer, limiter and engine from cfg.
// Browser discovery is lazy so commands that never render pay nothing.
// Packages log through the global logger, so logging.Setup must run first.
func newApp(cfg config.Config) (*app, error) {
	store, err := cache.NewStore(cache.StoreConfig{
		Root:      cfg.Cache.Dir,
		Namespace: cfg.Cache.Namespace,
		TTL:       cfg.Cache.TTL.Std(),
	})
	if err != nil {
		return nil, err
	}

	probability := cfg.Cache.SweepProbability
	if probability == 0 {
		probability = -1
	}
	janitor := cache.NewJanitor(store, cache.JanitorConfig{Probability: probability})

	renderLogger := logging.NewLogger("render")
	renderer, err := render.New(render.Config{
		Mode:        render.Mode(cfg.Render.Mode),
		BrowserPath: cfg.Render.BrowserPath,
		RemoteURL:   cfg.Render.RemoteURL,
		Settle: render.SettleConfig{
			Interval:  cfg.Render.SettleInterval.Std(),
			Threshold: cfg.Render.SettleThreshold,
		},
		Logger: &renderLogger,
	})
	if err != nil {
		return nil, err
	}

	var limiter *ratelimit.HostLimiter
	limitCfg := ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		IdleTTL:           cfg.RateLimit.IdleTTL.Std(),
	}
	if limitCfg.Enabled() {
		limiter = ratelimit.NewHostLimiter(limitCfg, logging.NewLogger("ratelimit"))
	}

	engine, err := fetch.New(fetch.Config{
		Store:         store,
		Janitor:       janitor,
		Renderer:      renderer,
		HTTPClient:    &http.Client{Timeout: cfg.HTTP.Timeout.Std()},
		Limiter:       limiter,
		RenderTimeout: cfg.Render.Timeout.Std(),
		UserAgent:     cfg.HTTP.UserAgent,
	})
	if err != nil {
		return nil, errors.Join(err, renderer.Close())
	}

	return &app{cfg: cfg, store: store, engine: engine}, nil
}

func (a *app) toolDependencies(logger zerolog.Logger) *tools.ToolDependencies {
	return &tools.ToolDependencies{
		Engine: a.engine,
		Batch: batch.Config{
			MaxConcurrency: a.cfg.Batch.MaxConcurrency,
			Timeout:        a.cfg.Batch.Timeout.Std(),
		},
		MaxLength: a.cfg.Tools.MaxLength,
		Logger:    logger,
	}
}

func (a *app) Close() error {
	return a.engine.Close()
}
