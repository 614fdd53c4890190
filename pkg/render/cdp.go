package render

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serializeDocument = `document.documentElement ? document.documentElement.outerHTML : ""`

// CDPConfig configures a CDPRenderer. Exactly one of ExecPath and RemoteURL
// selects the browser.
type CDPConfig struct {
	// ExecPath launches a local browser
	ExecPath string

	// RemoteURL attaches to a running browser's DevTools endpoint (ws:// or http://)
	RemoteURL string

	Settle    SettleConfig
	QueueSize int
	Logger    *zerolog.Logger
}

// CDPRenderer drives one long-lived browser over the DevTools protocol.
// Renders are serialized and each gets its own tab.
type CDPRenderer struct {
	settle SettleConfig
	queue  *taskQueue
	logger zerolog.Logger

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
}

// StartCDP launches or attaches to the browser. Failures wrap ErrRendererUnavailable.
func StartCDP(cfg CDPConfig) (*CDPRenderer, error) {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("engine", "cdp").Logger()

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	switch {
	case cfg.RemoteURL != "":
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	case cfg.ExecPath != "":
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(cfg.ExecPath),
			chromedp.NoSandbox,
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("%w: no browser executable or remote endpoint", ErrRendererUnavailable)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug().Msgf(format, args...)
		}),
	)

	// The first Run starts the browser; its context must outlive this call.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: start browser: %v", ErrRendererUnavailable, err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	logger.Info().
		Str("exec_path", cfg.ExecPath).
		Str("remote_url", cfg.RemoteURL).
		Msg("Browser engine started")

	return &CDPRenderer{
		settle:        cfg.Settle.withDefaults(),
		queue:         newTaskQueue(queueSize),
		logger:        logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// Render implements Renderer. The timeout covers time spent queued behind
// other renders.
func (r *CDPRenderer) Render(ctx context.Context, req *http.Request, timeout time.Duration) (res *Result, err error) {
	start := time.Now()
	defer func() { observe("cdp", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// out is only read after Do has received the task's result.
	var out *Result
	err = r.queue.Do(ctx, func(ctx context.Context) error {
		var taskErr error
		out, taskErr = r.renderTab(ctx, req)
		return taskErr
	})
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			return nil, contextErr(ctx)
		}
		return nil, err
	}
	return out, nil
}

// renderTab loads req in a new tab and returns the settled document.
func (r *CDPRenderer) renderTab(ctx context.Context, req *http.Request) (*Result, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	url := req.URL.String()
	logger := r.logger.With().Str("url", url).Logger()

	var (
		mu       sync.Mutex
		response *network.Response
		frame    cdp.FrameID
	)
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var methodApplied atomic.Bool

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			if ev.Type != network.ResourceTypeDocument {
				return
			}
			mu.Lock()
			// The first document response fixes the main frame; later ones
			// from the same frame are redirects or client-side navigations.
			if response == nil || ev.FrameID == frame {
				response = ev.Response
				frame = ev.FrameID
			}
			mu.Unlock()

		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(tabCtx)
				execCtx := cdp.WithExecutor(tabCtx, c.Target)
				cont := fetch.ContinueRequest(ev.RequestID)
				if methodApplied.CompareAndSwap(false, true) {
					cont = cont.WithMethod(method)
				}
				if err := cont.Do(execCtx); err != nil {
					logger.Debug().Err(err).Msg("Failed to continue intercepted request")
				}
			}()
		}
	})

	prepare := chromedp.Tasks{network.Enable()}
	if ua := req.Header.Get("User-Agent"); ua != "" {
		prepare = append(prepare, emulation.SetUserAgentOverride(ua))
	}
	if headers := extraHeaders(req.Header); len(headers) > 0 {
		prepare = append(prepare, network.SetExtraHTTPHeaders(headers))
	}
	if method != http.MethodGet {
		prepare = append(prepare, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
			URLPattern:   "*",
			ResourceType: network.ResourceTypeDocument,
			RequestStage: fetch.RequestStageRequest,
		}}))
	}

	if err := chromedp.Run(tabCtx, prepare); err != nil {
		if ctx.Err() != nil {
			return nil, contextErr(ctx)
		}
		return nil, fmt.Errorf("prepare tab: %w", err)
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return nil, contextErr(ctx)
		}
		return nil, &NavigationError{URL: url, Err: err}
	}

	doc, err := WaitForSettle(ctx, func(context.Context) (string, error) {
		var html string
		err := chromedp.Run(tabCtx, chromedp.Evaluate(serializeDocument, &html))
		return html, err
	}, r.settle)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	resp := response
	mu.Unlock()
	if resp == nil {
		return nil, ErrNoResponse
	}

	logger.Debug().Int64("status", resp.Status).Int("bytes", len(doc)).Msg("Page settled")

	return &Result{
		Body:        []byte(doc),
		StatusCode:  int(resp.Status),
		ContentType: serializedContentType(resp.MimeType),
		URL:         resp.URL,
		Header:      toHTTPHeader(resp.Headers),
	}, nil
}

// Close stops the queue and shuts the browser down.
func (r *CDPRenderer) Close() error {
	r.closeOnce.Do(func() {
		r.queue.Close()
		r.browserCancel()
		r.allocCancel()
	})
	return nil
}

// extraHeaders converts request headers other than User-Agent for SetExtraHTTPHeaders.
func extraHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for name, values := range h {
		if http.CanonicalHeaderKey(name) == "User-Agent" || len(values) == 0 {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// serializedContentType reports the type of the serialized DOM, which is always UTF-8.
func serializedContentType(mimeType string) string {
	if mimeType == "" {
		mimeType = "text/html"
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimeType
	}
	return mime.FormatMediaType(mediaType, map[string]string{"charset": "utf-8"})
}

// toHTTPHeader converts DevTools headers; multiple values arrive newline-joined.
func toHTTPHeader(h network.Headers) http.Header {
	out := http.Header{}
	for name, v := range h {
		for _, value := range strings.Split(fmt.Sprint(v), "\n") {
			out.Add(name, value)
		}
	}
	return out
}
