package fetch

import (
	"context"
	"errors"
	"net/http"

	"github.com/mredig/mcp-webreader/pkg/render"
)

// Common errors returned by the engine.
var (
	// ErrInvalidURL is returned when a request URL cannot be fetched.
	ErrInvalidURL = errors.New("invalid url")

	// ErrEngineClosed is returned for fetches after Close.
	ErrEngineClosed = errors.New("fetch engine closed")
)

// ErrorClass classifies a failed or unsuccessful fetch for observability.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassRenderTimeout represents pages that did not settle in time.
	ErrorClassRenderTimeout ErrorClass = "render_timeout"

	// ErrorClassRender represents other renderer failures.
	ErrorClassRender ErrorClass = "render"

	// ErrorClassCancelled represents fetches abandoned by the caller.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassInvalid represents requests rejected before any I/O.
	ErrorClassInvalid ErrorClass = "invalid"
)

// classifyError categorizes a fetch outcome. A nil error with a 2xx status
// has no class.
func classifyError(status int, err error) ErrorClass {
	if err != nil {
		var exitErr *render.ProcessExitError
		switch {
		case errors.Is(err, ErrInvalidURL):
			return ErrorClassInvalid
		case errors.Is(err, context.Canceled):
			return ErrorClassCancelled
		case errors.Is(err, render.ErrRenderTimeout):
			return ErrorClassRenderTimeout
		case errors.Is(err, render.ErrRendererUnavailable),
			errors.Is(err, render.ErrNavigationFailed),
			errors.Is(err, render.ErrNoResponse),
			errors.As(err, &exitErr):
			return ErrorClassRender
		default:
			return ErrorClassNetwork
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
