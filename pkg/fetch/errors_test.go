package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mredig/mcp-webreader/pkg/render"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		err      error
		expected ErrorClass
	}{
		{"success has no class", 200, nil, ""},
		{"redirect has no class", 304, nil, ""},
		{"not found", 404, nil, ErrorClassClient},
		{"too many requests", 429, nil, ErrorClassRateLimit},
		{"server error", 503, nil, ErrorClassServer},
		{"network error", 0, errors.New("connection refused"), ErrorClassNetwork},
		{"invalid url", 0, fmt.Errorf("%w: bad", ErrInvalidURL), ErrorClassInvalid},
		{"cancelled", 0, context.Canceled, ErrorClassCancelled},
		{"render timeout", 0, render.ErrRenderTimeout, ErrorClassRenderTimeout},
		{"navigation failed", 0, &render.NavigationError{URL: "https://x", Err: errors.New("net::ERR_FAILED")}, ErrorClassRender},
		{"no response", 0, render.ErrNoResponse, ErrorClassRender},
		{"process exit", 0, &render.ProcessExitError{Code: 1}, ErrorClassRender},
		{"unavailable", 0, render.ErrRendererUnavailable, ErrorClassRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.status, tt.err); got != tt.expected {
				t.Errorf("classifyError(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.expected)
			}
		})
	}
}
