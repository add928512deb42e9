package proxy

import (
	"fmt"
	"net/url"
	"time"

	"github.com/coreproxy/edgeproxy/internal/config"
)

// Config is the frozen, immutable configuration consumed by the proxy
// core. It is produced once at startup from config.Config and never
// mutated afterward; every request handler reads it concurrently without
// locking.
type Config struct {
	Backends       []*url.URL
	BackendTimeout time.Duration

	RateLimitPerMinute *float64
	RateLimitBurst     *float64

	MaxRequestSizeBytes int64

	CacheTTLSeconds   int
	CacheMaxSizeBytes *int64
}

// NewConfig validates and freezes a config.Config into the Config the
// core operates on. Backend base URLs are parsed once here so the hot
// path never re-parses them.
func NewConfig(src *config.Config) (*Config, error) {
	if len(src.Backends) == 0 {
		return nil, fmt.Errorf("no backends configured")
	}

	backends := make([]*url.URL, 0, len(src.Backends))
	for _, b := range src.Backends {
		u, err := url.Parse(b)
		if err != nil {
			return nil, fmt.Errorf("invalid backend URL %q: %w", b, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported backend scheme %q for %q", u.Scheme, b)
		}
		backends = append(backends, u)
	}

	burst := src.RateLimitBurst
	if src.RateLimitPerMinute != nil && (burst == nil || *burst == 0) {
		b := *src.RateLimitPerMinute
		burst = &b
	}

	return &Config{
		Backends:            backends,
		BackendTimeout:      src.BackendTimeout,
		RateLimitPerMinute:  src.RateLimitPerMinute,
		RateLimitBurst:      burst,
		MaxRequestSizeBytes: src.MaxRequestSizeBytes,
		CacheTTLSeconds:     src.CacheTTLSeconds,
		CacheMaxSizeBytes:   src.CacheMaxSizeBytes,
	}, nil
}

// CacheEnabled reports whether response caching is turned on.
func (c *Config) CacheEnabled() bool {
	return c.CacheTTLSeconds > 0
}

// RateLimitEnabled reports whether admission control is turned on.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitPerMinute != nil && *c.RateLimitPerMinute > 0
}
