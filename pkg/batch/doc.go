// Package batch fetches many documents in parallel through a fetch engine.
//
// Work is distributed over a fixed worker pool. Results come back in input
// order, each carrying its own error, and one failed URL never aborts its
// siblings. Because every fetch goes through the engine, cached documents are
// served from disk and only misses reach their origins.
//
// Example usage:
//
//	fetcher := batch.NewBatchFetcher(engine, batch.DefaultConfig())
//	results := fetcher.FetchAll(ctx, []fetch.Request{
//		{URL: "https://example.com/a"},
//		{URL: "https://example.com/b", RenderJS: true},
//	})
package batch
