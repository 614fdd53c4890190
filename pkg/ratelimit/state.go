// Package ratelimit paces outbound requests per origin host.
//
// Each host gets a token bucket from golang.org/x/time/rate. Hosts that answer
// 429 or 503 with a Retry-After header are paused until that moment. Idle hosts
// are evicted from the table after IdleTTL.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused host keeps its pacing state.
const DefaultIdleTTL = 10 * time.Minute

// MaxBackoff caps the pause honored from a Retry-After header.
const MaxBackoff = 5 * time.Minute

// Config holds the limiter configuration.
type Config struct {
	// RequestsPerSecond per host; zero or less disables pacing
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket size; defaults to 1
	Burst int `yaml:"burst"`

	// IdleTTL evicts host state after this long without use
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// Now overrides the clock (tests)
	Now func() time.Time `yaml:"-"`
}

// Enabled reports whether token-bucket pacing is on.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// hostState is the pacing state of one host.
type hostState struct {
	limiter *rate.Limiter

	mu           sync.Mutex
	blockedUntil time.Time
}

func newHostState(cfg Config) *hostState {
	limit := rate.Inf
	if cfg.Enabled() {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &hostState{limiter: rate.NewLimiter(limit, burst)}
}

// block pauses the host until t unless it is already paused for longer.
func (s *hostState) block(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.blockedUntil) {
		s.blockedUntil = t
	}
}

// blockedFor returns the remaining pause at now.
func (s *hostState) blockedFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.blockedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ParseRetryAfter reads a Retry-After value in either delay-seconds or
// HTTP-date form. The result is capped at MaxBackoff.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(value); err == nil {
		d = t.Sub(now)
		if d < 0 {
			d = 0
		}
	} else {
		return 0, false
	}

	if d > MaxBackoff {
		d = MaxBackoff
	}
	return d, true
}
