package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one fetch.
type Request struct {
	// URL is the absolute document URL
	URL string

	// RenderJS loads the document in a browser and returns the settled DOM
	RenderJS bool

	// IgnoreCache skips the cache lookup; the result is still stored
	IgnoreCache bool

	// Method defaults to GET
	Method string

	// UserAgent overrides the engine default
	UserAgent string

	// Headers are sent with the request; Host, Content-Length and Connection are dropped
	Headers map[string]string
}

// droppedHeaders are owned by the transport and never forwarded.
var droppedHeaders = map[string]bool{
	"host":           true,
	"content-length": true,
	"connection":     true,
}

// parseURL validates raw as a fetchable absolute URL. Rendering accepts any
// scheme the browser may handle, plain fetches only http and https.
func parseURL(raw string, rendered bool) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	}
	if !rendered && u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	return u, nil
}

// buildHTTPRequest assembles the outbound request for req.
func buildHTTPRequest(ctx context.Context, u *url.URL, req Request, defaultUA string) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for name, value := range req.Headers {
		if droppedHeaders[strings.ToLower(name)] {
			continue
		}
		httpReq.Header.Set(name, value)
	}

	switch {
	case req.UserAgent != "":
		httpReq.Header.Set("User-Agent", req.UserAgent)
	case httpReq.Header.Get("User-Agent") == "" && defaultUA != "":
		httpReq.Header.Set("User-Agent", defaultUA)
	}

	return httpReq, nil
}
