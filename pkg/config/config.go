// Package config loads webreader configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mredig/mcp-webreader/pkg/render"
)

// Environment variables that override file settings.
const (
	EnvCacheDir      = "WEBREADER_CACHE_DIR"
	EnvCacheTTL      = "WEBREADER_CACHE_TTL"
	EnvLogLevel      = "WEBREADER_LOG_LEVEL"
	EnvRenderMode    = "WEBREADER_RENDER_MODE"
	EnvRemoteBrowser = "WEBREADER_REMOTE_BROWSER"
	EnvBrowserPath   = render.BrowserPathEnv
	EnvUserAgent     = "WEBREADER_USER_AGENT"
	EnvMetricsAddr   = "WEBREADER_METRICS_ADDR"
)

// DefaultUserAgent identifies webreader to origins.
const DefaultUserAgent = "Mozilla/5.0 (compatible; webreader/1.0; +https://github.com/mredig/mcp-webreader)"

type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Render    RenderConfig    `yaml:"render"`
	HTTP      HTTPConfig      `yaml:"http"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Batch     BatchConfig     `yaml:"batch"`
	Tools     ToolsConfig     `yaml:"tools"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type CacheConfig struct {
	Dir       string   `yaml:"dir"`
	Namespace string   `yaml:"namespace"`
	TTL       Duration `yaml:"ttl"`

	// SweepProbability is the chance a cache hit starts a sweep; 0 disables sweeping
	SweepProbability float64 `yaml:"sweep_probability"`
}

type RenderConfig struct {
	Mode            string   `yaml:"mode"`
	BrowserPath     string   `yaml:"browser_path"`
	RemoteURL       string   `yaml:"remote_url"`
	Timeout         Duration `yaml:"timeout"`
	SettleInterval  Duration `yaml:"settle_interval"`
	SettleThreshold int      `yaml:"settle_threshold"`
}

type HTTPConfig struct {
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	IdleTTL           Duration `yaml:"idle_ttl"`
}

type BatchConfig struct {
	MaxConcurrency int      `yaml:"max_concurrency"`
	Timeout        Duration `yaml:"timeout"`
}

type ToolsConfig struct {
	// MaxLength caps returned text in characters; 0 is unlimited
	MaxLength int `yaml:"max_length"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Dir:              defaultCacheDir(),
			Namespace:        "pages",
			TTL:              Duration(time.Hour),
			SweepProbability: 0.1,
		},
		Render: RenderConfig{
			Mode:            string(render.ModeAuto),
			Timeout:         Duration(30 * time.Second),
			SettleInterval:  Duration(500 * time.Millisecond),
			SettleThreshold: 3,
		},
		HTTP: HTTPConfig{
			Timeout:   Duration(30 * time.Second),
			UserAgent: DefaultUserAgent,
		},
		RateLimit: RateLimitConfig{
			Burst:   1,
			IdleTTL: Duration(10 * time.Minute),
		},
		Batch: BatchConfig{
			MaxConcurrency: 4,
			Timeout:        Duration(60 * time.Second),
		},
		Tools: ToolsConfig{
			MaxLength: 100000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "webreader")
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg, rejecting unknown keys.
func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides settings from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvCacheDir); ok {
		c.Cache.Dir = v
	}
	if v, ok := get(EnvCacheTTL); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheTTL, err)
		}
		c.Cache.TTL = Duration(d)
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := get(EnvRenderMode); ok {
		c.Render.Mode = v
	}
	if v, ok := get(EnvRemoteBrowser); ok {
		c.Render.RemoteURL = v
	}
	if v, ok := get(EnvBrowserPath); ok {
		c.Render.BrowserPath = v
	}
	if v, ok := get(EnvUserAgent); ok {
		c.HTTP.UserAgent = v
	}
	if v, ok := get(EnvMetricsAddr); ok {
		c.Metrics.Addr = v
	}
	return nil
}

// Validate reports the first invalid setting by its YAML path.
func (c Config) Validate() error {
	switch {
	case c.Cache.Dir == "":
		return fmt.Errorf("cache.dir is required")
	case c.Cache.TTL <= 0:
		return fmt.Errorf("cache.ttl must be positive (got %s)", c.Cache.TTL)
	case c.Cache.SweepProbability < 0 || c.Cache.SweepProbability > 1:
		return fmt.Errorf("cache.sweep_probability must be within [0, 1] (got %g)", c.Cache.SweepProbability)
	case c.Render.Timeout <= 0:
		return fmt.Errorf("render.timeout must be positive (got %s)", c.Render.Timeout)
	case c.Render.SettleInterval <= 0:
		return fmt.Errorf("render.settle_interval must be positive (got %s)", c.Render.SettleInterval)
	case c.Render.SettleThreshold < 1:
		return fmt.Errorf("render.settle_threshold must be at least 1 (got %d)", c.Render.SettleThreshold)
	case c.HTTP.Timeout <= 0:
		return fmt.Errorf("http.timeout must be positive (got %s)", c.HTTP.Timeout)
	case c.RateLimit.RequestsPerSecond < 0:
		return fmt.Errorf("rate_limit.requests_per_second must not be negative (got %g)", c.RateLimit.RequestsPerSecond)
	case c.Batch.MaxConcurrency < 1:
		return fmt.Errorf("batch.max_concurrency must be at least 1 (got %d)", c.Batch.MaxConcurrency)
	case c.Tools.MaxLength < 0:
		return fmt.Errorf("tools.max_length must not be negative (got %d)", c.Tools.MaxLength)
	}

	if _, err := render.ParseMode(c.Render.Mode); err != nil {
		return fmt.Errorf("render.mode: %w", err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}
