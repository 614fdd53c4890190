package cache

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultSweepProbability is the chance a cache hit triggers a sweep.
const DefaultSweepProbability = 0.1

// JanitorConfig holds janitor configuration.
type JanitorConfig struct {
	// Probability is the chance in [0,1] that MaybeSweep starts a sweep.
	// Zero selects DefaultSweepProbability; a negative value disables sweeping.
	Probability float64

	// Rand returns a uniform value in [0,1). Defaults to math/rand/v2.
	Rand func() float64

	// Logger overrides the store logger
	Logger *zerolog.Logger
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Removed int
	Failed  int
}

// Janitor evicts expired entries from a Store. Sweeps are opportunistic:
// the read path flips a weighted coin after a hit and, on success, a single
// background sweep runs. Nothing bounds disk usage between sweeps.
type Janitor struct {
	store       *Store
	probability float64
	rand        func() float64
	logger      zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewJanitor creates a janitor for the store.
func NewJanitor(store *Store, cfg JanitorConfig) *Janitor {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if cfg.Probability == 0 {
		cfg.Probability = DefaultSweepProbability
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}

	logger := store.logger.With().Str("subcomponent", "janitor").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Janitor{
		store:       store,
		probability: cfg.Probability,
		rand:        cfg.Rand,
		logger:      logger,
	}
}

// MaybeSweep flips the weighted coin and, when it lands, starts a background
// sweep. Returns true if a sweep was started. At most one sweep runs at a time.
func (j *Janitor) MaybeSweep() bool {
	if j.probability <= 0 || j.rand() >= j.probability {
		return false
	}
	if !j.running.CompareAndSwap(false, true) {
		return false
	}

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer j.running.Store(false)

		res := j.Sweep()
		j.logger.Debug().
			Int("scanned", res.Scanned).
			Int("removed", res.Removed).
			Int("failed", res.Failed).
			Msg("Cache sweep finished")
	}()
	return true
}

// Wait blocks until a running background sweep has finished.
func (j *Janitor) Wait() {
	j.wg.Wait()
}

// Sweep removes every entry whose payload file is older than the TTL, judged
// by modification time, plus orphaned metadata and temporary files.
// Individual failures are counted and never stop the sweep.
func (j *Janitor) Sweep() SweepResult {
	CacheSweeps.Inc()

	var res SweepResult
	dirEntries, err := os.ReadDir(j.store.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			CacheErrors.WithLabelValues("sweep").Inc()
			j.logger.Warn().Err(err).Msg("Cache sweep could not list directory")
		}
		return res
	}

	now := j.store.now()
	ttl := j.store.ttl

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed since listing
			continue
		}

		name := de.Name()
		if now.Sub(info.ModTime()) <= ttl {
			if isPayloadName(name) {
				res.Scanned++
			}
			continue
		}

		switch {
		case strings.HasPrefix(name, tmpPrefix):
			_ = j.remove(name)

		case strings.HasSuffix(name, metaSuffix):
			payload := strings.TrimSuffix(name, metaSuffix)
			if _, err := os.Stat(j.store.payloadPath(payload)); errors.Is(err, fs.ErrNotExist) {
				_ = j.remove(name)
			}

		default:
			res.Scanned++
			if err := j.removeEntry(name); err != nil {
				res.Failed++
				CacheErrors.WithLabelValues("sweep").Inc()
				j.logger.Debug().Err(err).Str("digest", name).Msg("Failed to evict cache entry")
				continue
			}
			res.Removed++
			CacheEvictions.Inc()
		}
	}

	return res
}

// removeEntry deletes both artifacts of a digest.
func (j *Janitor) removeEntry(digest string) error {
	return errors.Join(j.remove(digest), j.remove(digest+metaSuffix))
}

func (j *Janitor) remove(name string) error {
	err := os.Remove(filepath.Join(j.store.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
