package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// waitDelay bounds how long Wait keeps collecting output after the browser
// is killed, in case a child process still holds its pipes.
const waitDelay = 2 * time.Second

// ProcessConfig configures a ProcessRenderer.
type ProcessConfig struct {
	Locator   Locator
	ExtraArgs []string
	Logger    *zerolog.Logger
}

// ProcessRenderer runs a headless browser per request and captures the DOM it dumps.
//
// Only the URL and the User-Agent header reach the browser. Other headers and
// non-GET methods cannot be expressed on its command line.
type ProcessRenderer struct {
	locator   Locator
	extraArgs []string
	logger    zerolog.Logger
}

// NewProcessRenderer creates a process-mode renderer. The executable is
// located on every render so a browser installed later is picked up.
func NewProcessRenderer(cfg ProcessConfig) *ProcessRenderer {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &ProcessRenderer{
		locator:   cfg.Locator,
		extraArgs: cfg.ExtraArgs,
		logger:    logger.With().Str("engine", "process").Logger(),
	}
}

// Render implements Renderer.
func (r *ProcessRenderer) Render(ctx context.Context, req *http.Request, timeout time.Duration) (res *Result, err error) {
	start := time.Now()
	defer func() { observe("process", start, err) }()

	path, err := r.locator.Locate()
	if err != nil {
		return nil, err
	}

	if req.Method != "" && req.Method != http.MethodGet {
		r.logger.Debug().Str("method", req.Method).Msg("Process renderer ignores request method, loading with GET")
	}
	if dropped := droppedHeaders(req.Header); len(dropped) > 0 {
		r.logger.Debug().Strs("headers", dropped).Msg("Process renderer cannot forward request headers")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(path, r.args(req, timeout)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrRendererUnavailable, path, err)
	}

	r.logger.Debug().
		Str("browser", path).
		Str("url", req.URL.String()).
		Int("pid", cmd.Process.Pid).
		Dur("timeout", timeout).
		Msg("Browser process started")

	// terminated is claimed exactly once, either by a kill or by normal completion.
	var terminated, alreadyExited atomic.Bool
	kill := func() {
		if !terminated.CompareAndSwap(false, true) {
			return
		}
		if err := cmd.Process.Kill(); errors.Is(err, os.ErrProcessDone) {
			alreadyExited.Store(true)
		}
	}

	timer := time.AfterFunc(timeout, kill)
	stopOnCancel := context.AfterFunc(ctx, kill)

	waitErr := cmd.Wait()
	timer.Stop()
	stopOnCancel()

	killed := !terminated.CompareAndSwap(false, true)
	if killed && !exitedOnItsOwn(alreadyExited.Load(), cmd.ProcessState) {
		if ctx.Err() != nil {
			return nil, contextErr(ctx)
		}
		r.logger.Debug().Str("url", req.URL.String()).Msg("Browser process killed after time budget")
		return nil, ErrRenderTimeout
	}

	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &ProcessExitError{
				Path:   path,
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(stderr.String()),
			}
		}
		return nil, fmt.Errorf("wait for %s: %w", path, waitErr)
	}

	return &Result{
		Body:        stdout.Bytes(),
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		URL:         req.URL.String(),
		Header:      http.Header{},
	}, nil
}

// exitedOnItsOwn reports whether a process that a kill was issued against had
// already finished. Killing an exited but unreaped child succeeds silently, so
// the reaped state decides: a signalled process was ours. Windows reports every
// termination as an exit, leaving only the kill result to go on.
func exitedOnItsOwn(killFoundDone bool, state *os.ProcessState) bool {
	if killFoundDone {
		return true
	}
	if runtime.GOOS == "windows" || state == nil {
		return false
	}
	return state.Exited()
}

// Close implements Renderer. Processes do not outlive their render.
func (r *ProcessRenderer) Close() error {
	return nil
}

// args builds the browser command line. Virtual time gets three quarters of
// the budget so the dump happens before the hard kill.
func (r *ProcessRenderer) args(req *http.Request, timeout time.Duration) []string {
	budget := timeout * 3 / 4

	args := []string{
		"--headless",
		"--disable-gpu",
		"--no-first-run",
		"--no-sandbox",
		"--dump-dom",
		fmt.Sprintf("--virtual-time-budget=%d", budget.Milliseconds()),
	}
	if ua := req.Header.Get("User-Agent"); ua != "" {
		args = append(args, "--user-agent="+ua)
	}
	args = append(args, r.extraArgs...)
	return append(args, req.URL.String())
}

func droppedHeaders(h http.Header) []string {
	var names []string
	for name := range h {
		if http.CanonicalHeaderKey(name) == "User-Agent" {
			continue
		}
		names = append(names, name)
	}
	return names
}
