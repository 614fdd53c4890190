// Package render materializes documents that need their scripts executed
// before they are worth reading.
//
// Two engines satisfy the same Renderer contract. CDPRenderer keeps one
// browser alive and drives a fresh tab per request over the DevTools protocol,
// waiting until the serialized DOM stops changing. ProcessRenderer runs a
// headless browser binary per request in --dump-dom mode. AutoRenderer starts
// the CDP engine on first use and falls back to the process engine when the
// platform cannot host it.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrRendererUnavailable indicates no engine or browser executable could be found
	ErrRendererUnavailable = errors.New("renderer unavailable")

	// ErrRenderTimeout indicates the page did not settle within the time budget
	ErrRenderTimeout = errors.New("render timed out")

	// ErrNavigationFailed indicates the browser reported a failed navigation
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrNoResponse indicates no navigation response was observed while loading
	ErrNoResponse = errors.New("no navigation response captured")
)

// Renderer produces a fully materialized document for a request.
type Renderer interface {
	// Render loads the request, waits for it to settle and returns the final
	// document. The whole operation is bounded by timeout.
	Render(ctx context.Context, req *http.Request, timeout time.Duration) (*Result, error)

	// Close releases the engine.
	Close() error
}

// Result is a rendered document with the response metadata observed for it.
type Result struct {
	Body        []byte
	StatusCode  int
	ContentType string
	URL         string
	Header      http.Header
}

// NavigationError reports a navigation the browser could not complete.
type NavigationError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Is matches ErrNavigationFailed.
func (e *NavigationError) Is(target error) bool {
	return target == ErrNavigationFailed
}

// ProcessExitError reports a browser process that exited unsuccessfully.
type ProcessExitError struct {
	Path   string
	Code   int
	Stderr string
}

// Error implements the error interface.
func (e *ProcessExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Path, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s exited with status %d", e.Path, e.Code)
}

// contextErr maps an ended context to the error a render reports:
// an expired deadline is a render timeout, anything else is the caller's cancellation.
func contextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrRenderTimeout
	}
	return ctx.Err()
}

// outcome classifies a render error for metrics.
func outcome(err error) string {
	var exitErr *ProcessExitError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRenderTimeout):
		return "timeout"
	case errors.Is(err, ErrNavigationFailed):
		return "navigation_failed"
	case errors.Is(err, ErrNoResponse):
		return "no_response"
	case errors.Is(err, ErrRendererUnavailable):
		return "unavailable"
	case errors.As(err, &exitErr):
		return "process_exit"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
