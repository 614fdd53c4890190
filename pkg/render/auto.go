package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode selects the rendering engine.
type Mode string

const (
	// ModeAuto tries the embedded engine and falls back to processes
	ModeAuto Mode = "auto"
	// ModeCDP only uses the embedded engine
	ModeCDP Mode = "cdp"
	// ModeProcess only uses browser processes
	ModeProcess Mode = "process"
)

// ParseMode validates a mode name. The empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeCDP, ModeProcess:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown render mode %q (want auto, cdp or process)", s)
	}
}

// StartFunc starts an engine on demand.
type StartFunc func() (Renderer, error)

// AutoRenderer starts its primary engine on the first render. When a
// fallback is configured, a failed start switches to it for good; without
// one the start is retried on the next render.
type AutoRenderer struct {
	start    StartFunc
	fallback Renderer
	logger   zerolog.Logger

	mu     sync.Mutex
	active Renderer
	closed bool
}

// NewAutoRenderer creates a lazily started renderer. fallback may be nil.
func NewAutoRenderer(start StartFunc, fallback Renderer, logger *zerolog.Logger) *AutoRenderer {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &AutoRenderer{
		start:    start,
		fallback: fallback,
		logger:   l,
	}
}

// Render implements Renderer.
func (a *AutoRenderer) Render(ctx context.Context, req *http.Request, timeout time.Duration) (*Result, error) {
	r, err := a.resolve()
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, req, timeout)
}

func (a *AutoRenderer) resolve() (Renderer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("%w: renderer closed", ErrRendererUnavailable)
	}
	if a.active != nil {
		return a.active, nil
	}

	r, err := a.start()
	if err == nil {
		a.active = r
		return r, nil
	}

	if a.fallback == nil {
		if !errors.Is(err, ErrRendererUnavailable) {
			err = fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
		}
		return nil, err
	}

	a.logger.Warn().Err(err).Msg("Browser engine unavailable, falling back to browser processes")
	a.active = a.fallback
	return a.active, nil
}

// Active returns the engine in use, or nil before the first render.
func (a *AutoRenderer) Active() Renderer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Close implements Renderer.
func (a *AutoRenderer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if a.active != nil && a.active != a.fallback {
		errs = append(errs, a.active.Close())
	}
	if a.fallback != nil {
		errs = append(errs, a.fallback.Close())
	}
	return errors.Join(errs...)
}

// Config selects and configures the renderer built by New.
type Config struct {
	Mode        Mode
	BrowserPath string
	RemoteURL   string
	Settle      SettleConfig
	Logger      *zerolog.Logger
}

// New builds the renderer for cfg.Mode. Engines start on first use, so New
// succeeds even when no browser is installed.
func New(cfg Config) (Renderer, error) {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}

	locator := DefaultLocator(cfg.BrowserPath)
	locator.Logger = cfg.Logger
	process := NewProcessRenderer(ProcessConfig{Locator: locator, Logger: cfg.Logger})

	startCDP := func() (Renderer, error) {
		cdpCfg := CDPConfig{
			RemoteURL: cfg.RemoteURL,
			Settle:    cfg.Settle,
			Logger:    cfg.Logger,
		}
		if cdpCfg.RemoteURL == "" {
			path, err := locator.Locate()
			if err != nil {
				return nil, err
			}
			cdpCfg.ExecPath = path
		}
		return StartCDP(cdpCfg)
	}

	switch mode {
	case ModeProcess:
		return process, nil
	case ModeCDP:
		return NewAutoRenderer(startCDP, nil, cfg.Logger), nil
	default:
		return NewAutoRenderer(startCDP, process, cfg.Logger), nil
	}
}
