package render

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// SettleConfig controls settle detection.
type SettleConfig struct {
	// Interval is the time between DOM snapshots
	Interval time.Duration

	// Threshold is how many consecutive unchanged snapshots mean the page settled
	Threshold int
}

// DefaultSettleConfig samples every 500ms and requires 3 unchanged samples.
func DefaultSettleConfig() SettleConfig {
	return SettleConfig{
		Interval:  500 * time.Millisecond,
		Threshold: 3,
	}
}

func (c SettleConfig) withDefaults() SettleConfig {
	def := DefaultSettleConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	return c
}

// Sampler serializes the current document.
type Sampler func(ctx context.Context) (string, error)

// WaitForSettle samples the document on every interval tick until its hash has
// matched the previous sample Threshold times in a row, then returns the last
// serialization. A changed hash resets the count and becomes the new baseline.
//
// The wait ends with ErrRenderTimeout when ctx's deadline passes and with
// ctx.Err() when ctx is cancelled. No sampling happens after it returns.
func WaitForSettle(ctx context.Context, sample Sampler, cfg SettleConfig) (string, error) {
	cfg = cfg.withDefaults()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var (
		baseline [sha256.Size]byte
		sampled  bool
		matches  int
	)

	for {
		select {
		case <-ctx.Done():
			return "", contextErr(ctx)
		case <-ticker.C:
		}

		doc, err := sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", contextErr(ctx)
			}
			return "", fmt.Errorf("sample document: %w", err)
		}
		settleSamples.Inc()

		sum := sha256.Sum256([]byte(doc))
		if sampled && sum == baseline {
			matches++
		} else {
			baseline = sum
			sampled = true
			matches = 0
		}

		if matches >= cfg.Threshold {
			return doc, nil
		}
	}
}
