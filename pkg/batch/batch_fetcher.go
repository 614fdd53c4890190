package batch

import (
	"context"
	"sync"
	"time"

	"github.com/mredig/mcp-webreader/pkg/fetch"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	MaxConcurrency int
	// Timeout per document fetch
	Timeout time.Duration
}

// DefaultConfig returns the default batch configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        60 * time.Second,
	}
}

// Fetcher is the single-document fetch the batch fetcher fans out
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.CacheResponse, error)
}

// Result is the outcome of one document in a batch
type Result struct {
	Index    int
	Request  fetch.Request
	Response *fetch.CacheResponse
	Error    error
}

// BatchFetcher handles parallel fetching of multiple documents
type BatchFetcher struct {
	fetcher Fetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher Fetcher, config Config) *BatchFetcher {
	def := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every request using a worker pool and returns one result
// per request, in input order. Requests not started before ctx ends report
// ctx.Err().
func (bf *BatchFetcher) FetchAll(ctx context.Context, reqs []fetch.Request) []Result {
	start := time.Now()
	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	workers := bf.config.MaxConcurrency
	if workers > len(reqs) {
		workers = len(reqs)
	}

	log.Info().
		Int("documents", len(reqs)).
		Int("workers", workers).
		Msg("Starting batch fetch")

	queue := make(chan int, len(reqs))
	for i := range reqs {
		queue <- i
	}
	close(queue)

	// Each worker writes only the slots it dequeued
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, reqs, queue, results, &wg, i)
	}
	wg.Wait()

	failed, hits := 0, 0
	for _, r := range results {
		switch {
		case r.Error != nil:
			failed++
		case r.Response.CacheHit:
			hits++
		}
	}

	log.Info().
		Int("documents", len(reqs)).
		Int("failed", failed).
		Int("cache_hits", hits).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

// worker processes documents from the queue
func (bf *BatchFetcher) worker(ctx context.Context, reqs []fetch.Request, queue <-chan int, results []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		results[i] = Result{Index: i, Request: reqs[i]}

		// Check context cancellation
		if err := ctx.Err(); err != nil {
			results[i].Error = err
			continue
		}

		docCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		resp, err := bf.fetcher.Fetch(docCtx, reqs[i])
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("url", reqs[i].URL).
				Msg("Document fetch failed")
			results[i].Error = err
			continue
		}

		results[i].Response = resp
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("documents_processed", processed).
			Msg("Worker completed")
	}
}
