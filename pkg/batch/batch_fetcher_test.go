package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mredig/mcp-webreader/pkg/fetch"
)

// mockFetcher answers from a function and tracks concurrency.
type mockFetcher struct {
	fn func(ctx context.Context, req fetch.Request) (*fetch.CacheResponse, error)

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (m *mockFetcher) Fetch(ctx context.Context, req fetch.Request) (*fetch.CacheResponse, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxSeen.Load()
		if n <= cur || m.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	return m.fn(ctx, req)
}

func echoFetch(delay time.Duration) func(ctx context.Context, req fetch.Request) (*fetch.CacheResponse, error) {
	return func(ctx context.Context, req fetch.Request) (*fetch.CacheResponse, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if strings.Contains(req.URL, "fail") {
			return nil, errors.New("connection refused")
		}
		return &fetch.CacheResponse{Data: []byte(req.URL), StatusCode: 200}, nil
	}
}

func requests(urls ...string) []fetch.Request {
	reqs := make([]fetch.Request, len(urls))
	for i, u := range urls {
		reqs[i] = fetch.Request{URL: u}
	}
	return reqs
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(&mockFetcher{}, Config{})
	if bf.config.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", bf.config.MaxConcurrency)
	}
	if bf.config.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", bf.config.Timeout)
	}
}

func TestFetchAll_OrderAndErrors(t *testing.T) {
	m := &mockFetcher{fn: echoFetch(time.Millisecond)}
	bf := NewBatchFetcher(m, Config{MaxConcurrency: 3, Timeout: time.Second})

	urls := []string{"https://a", "https://fail-b", "https://c", "https://d", "https://fail-e", "https://f"}
	results := bf.FetchAll(context.Background(), requests(urls...))

	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}

	for i, r := range results {
		if r.Index != i || r.Request.URL != urls[i] {
			t.Errorf("result %d is for %s (index %d)", i, r.Request.URL, r.Index)
		}
		shouldFail := strings.Contains(urls[i], "fail")
		if shouldFail {
			if r.Error == nil {
				t.Errorf("%s: expected error", urls[i])
			}
			continue
		}
		if r.Error != nil {
			t.Errorf("%s: unexpected error %v", urls[i], r.Error)
			continue
		}
		if string(r.Response.Data) != urls[i] {
			t.Errorf("%s: Data = %q", urls[i], r.Response.Data)
		}
	}

	if got := m.calls.Load(); got != int32(len(urls)) {
		t.Errorf("calls = %d, want %d (failures must not abort siblings)", got, len(urls))
	}
}

func TestFetchAll_BoundedConcurrency(t *testing.T) {
	m := &mockFetcher{fn: echoFetch(5 * time.Millisecond)}
	bf := NewBatchFetcher(m, Config{MaxConcurrency: 2, Timeout: time.Second})

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = "https://example.com/" + string(rune('a'+i))
	}
	bf.FetchAll(context.Background(), requests(urls...))

	if got := m.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent fetches = %d, want <= 2", got)
	}
}

func TestFetchAll_PerDocumentTimeout(t *testing.T) {
	m := &mockFetcher{fn: echoFetch(time.Second)}
	bf := NewBatchFetcher(m, Config{MaxConcurrency: 2, Timeout: 20 * time.Millisecond})

	results := bf.FetchAll(context.Background(), requests("https://slow"))
	if !errors.Is(results[0].Error, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", results[0].Error)
	}
}

func TestFetchAll_Cancelled(t *testing.T) {
	m := &mockFetcher{fn: echoFetch(0)}
	bf := NewBatchFetcher(m, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := bf.FetchAll(ctx, requests("https://a", "https://b"))
	for _, r := range results {
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", r.Request.URL, r.Error)
		}
	}
	if m.calls.Load() != 0 {
		t.Error("No fetch should start after cancellation")
	}
}

func TestFetchAll_Empty(t *testing.T) {
	bf := NewBatchFetcher(&mockFetcher{}, DefaultConfig())
	if results := bf.FetchAll(context.Background(), nil); len(results) != 0 {
		t.Errorf("got %d results for no requests", len(results))
	}
}

func TestFetchAll_ConcurrentCallers(t *testing.T) {
	m := &mockFetcher{fn: echoFetch(time.Millisecond)}
	bf := NewBatchFetcher(m, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := bf.FetchAll(context.Background(), requests("https://a", "https://b"))
			for _, r := range results {
				if r.Error != nil {
					t.Errorf("unexpected error: %v", r.Error)
				}
			}
		}()
	}
	wg.Wait()
}
