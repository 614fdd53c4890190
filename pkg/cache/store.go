package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates no usable entry exists for the key
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the metadata artifact is unreadable or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

const (
	// DefaultTTL is how long an entry stays fresh when no TTL is configured
	DefaultTTL = time.Hour

	// DefaultNamespace is the subdirectory of the cache root holding entries
	DefaultNamespace = "pages"

	metaSuffix = ".meta"
	tmpPrefix  = ".tmp-"
)

// Reasons a lookup missed, used as metric labels.
const (
	missAbsent  = "absent"
	missCorrupt = "corrupt"
	missStale   = "stale"
)

// StoreConfig holds the filesystem store configuration.
type StoreConfig struct {
	// Root is the cache root directory
	Root string

	// Namespace is the subdirectory of Root entries are written to
	Namespace string

	// TTL is the freshness window of every entry
	TTL time.Duration

	// Now overrides the clock (tests)
	Now func() time.Time

	// Logger overrides the package logger
	Logger *zerolog.Logger
}

// Store is a content-addressed, TTL-bounded file store. Each entry is a
// payload file named after the key digest and a JSON metadata file next to it.
//
// A Store holds no in-memory state beyond its configuration, so it is safe for
// concurrent use; writes to the same key race and the last rename wins.
type Store struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewStore creates the namespace directory and returns a store rooted there.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := log.With().Str("component", "cache").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	dir := filepath.Join(cfg.Root, cfg.Namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &Store{
		dir:    dir,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: logger,
	}, nil
}

// Dir returns the directory entries are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// TTL returns the configured freshness window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Get retrieves a fresh cache entry by key.
// Returns ErrCacheMiss if either artifact is missing, the metadata does not
// parse, or the entry is stale. Get never deletes anything.
func (s *Store) Get(key CacheKey) (*CacheEntry, error) {
	digest := key.Digest()

	entry, reason, err := s.readEntry(digest)
	if err != nil {
		// Corrupt and partial entries are ordinary misses; the next Put replaces them.
		if reason == missCorrupt {
			s.logger.Debug().Err(err).Str("digest", digest).Msg("Discarding unreadable cache entry")
		}
		CacheMisses.WithLabelValues(reason).Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpired(s.now(), s.ttl) {
		CacheMisses.WithLabelValues(missStale).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return entry, nil
}

// readEntry loads both artifacts of a digest. The returned reason classifies
// the failure when err is non-nil.
func (s *Store) readEntry(digest string) (*CacheEntry, string, error) {
	metaData, err := os.ReadFile(s.metaPath(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, missAbsent, err
		}
		return nil, missCorrupt, err
	}

	var meta Metadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, missCorrupt, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if meta.Timestamp.IsZero() {
		return nil, missCorrupt, fmt.Errorf("%w: missing timestamp", ErrInvalidEntry)
	}

	data, err := os.ReadFile(s.payloadPath(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, missAbsent, err
		}
		return nil, missCorrupt, err
	}

	return &CacheEntry{Data: data, Metadata: meta}, "", nil
}

// Put stores a payload and its metadata under the key.
// Both artifacts are fully written to temporary files before either is
// renamed into place, so readers only ever see complete files.
func (s *Store) Put(key CacheKey, data []byte, contentType string) error {
	digest := key.Digest()

	meta := Metadata{
		URL:         key.URL,
		Timestamp:   s.now().UTC(),
		ContentType: contentType,
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache metadata: %w", err)
	}

	// The directory may have been removed by a concurrent Clear.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("create cache directory: %w", err)
	}

	payloadTmp, err := s.writeTemp(data)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("write cache payload: %w", err)
	}
	defer os.Remove(payloadTmp)

	metaTmp, err := s.writeTemp(metaData)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("write cache metadata: %w", err)
	}
	defer os.Remove(metaTmp)

	if err := os.Rename(payloadTmp, s.payloadPath(digest)); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("rename cache payload: %w", err)
	}
	if err := os.Rename(metaTmp, s.metaPath(digest)); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("rename cache metadata: %w", err)
	}

	CacheWrites.Inc()
	CacheWrittenBytes.Add(float64(len(data)))

	s.logger.Debug().
		Str("url", key.URL).
		Bool("rendered", key.Rendered).
		Str("digest", digest).
		Int("bytes", len(data)).
		Msg("Cached response")

	return nil
}

// writeTemp writes data to a new temporary file in the store directory and
// returns its path.
func (s *Store) writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// Clear removes every entry. Subsequent lookups miss until repopulated.
// Only a failure to recreate the directory is returned.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		s.logger.Warn().Err(err).Str("dir", s.dir).Msg("Failed to remove cache directory")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("recreate cache directory: %w", err)
	}

	s.logger.Info().Str("dir", s.dir).Msg("Cache cleared")
	return nil
}

// Entries lists the fresh entries currently stored, newest first.
// Unreadable and stale entries are skipped.
func (s *Store) Entries() ([]EntryInfo, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	now := s.now()
	infos := make([]EntryInfo, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if !isPayloadName(name) {
			continue
		}

		entry, _, err := s.readEntry(name)
		if err != nil || entry.IsExpired(now, s.ttl) {
			continue
		}

		infos = append(infos, EntryInfo{
			Digest:   name,
			Size:     int64(len(entry.Data)),
			Metadata: entry.Metadata,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	return infos, nil
}

func (s *Store) payloadPath(digest string) string {
	return filepath.Join(s.dir, digest)
}

func (s *Store) metaPath(digest string) string {
	return filepath.Join(s.dir, digest+metaSuffix)
}

// isPayloadName reports whether a directory entry name is a payload artifact.
func isPayloadName(name string) bool {
	return !strings.HasPrefix(name, tmpPrefix) && !strings.HasSuffix(name, metaSuffix)
}
