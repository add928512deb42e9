// Package config provides environment-driven configuration for edgeproxy.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	ListenHost string
	Port       string

	MetricsHost string
	MetricsPort string

	Backends       []string      `validate:"required,min=1,dive,url"`
	BackendTimeout time.Duration `validate:"required,gt=0"`

	RateLimitPerMinute *float64
	RateLimitBurst     *float64

	MaxRequestSizeBytes int64 `validate:"gt=0"`

	CacheTTLSeconds   int
	CacheMaxSizeBytes *int64

	StaticDir string

	DatabaseURL Secret

	LogLevel         string
	CORSOrigins      []string
	EnableAdminUI    bool
	AdminWriteTokens []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenHost:          envOrDefault("LISTEN_HOST", "0.0.0.0"),
		Port:                envOrDefault("PORT", "8080"),
		MetricsHost:         envOrDefault("METRICS_HOST", "127.0.0.1"),
		MetricsPort:         envOrDefault("METRICS_PORT", "9090"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		StaticDir:           envOrDefault("STATIC_DIR", "./static"),
		DatabaseURL:         Secret(envOrDefault("DATABASE_URL", "")),
		MaxRequestSizeBytes: 10 << 20,
		EnableAdminUI:       envOrDefault("ENABLE_ADMIN_UI", "false") == "true",
	}

	backends := envOrDefault("BACKENDS", "")
	if backends != "" {
		for _, b := range strings.Split(backends, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Backends = append(cfg.Backends, b)
			}
		}
	}

	timeoutSecs, err := strconv.Atoi(envOrDefault("BACKEND_TIMEOUT_SECONDS", "30"))
	if err != nil || timeoutSecs <= 0 {
		return nil, fmt.Errorf("BACKEND_TIMEOUT_SECONDS must be a positive integer")
	}
	cfg.BackendTimeout = time.Duration(timeoutSecs) * time.Second

	if v := os.Getenv("MAX_REQUEST_SIZE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_REQUEST_SIZE_BYTES must be a positive integer")
		}
		cfg.MaxRequestSizeBytes = n
	}

	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be a positive number")
		}
		cfg.RateLimitPerMinute = &f
	}

	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_BURST must be a positive number")
		}
		cfg.RateLimitBurst = &f
	}

	ttl, err := strconv.Atoi(envOrDefault("CACHE_TTL_SECONDS", "0"))
	if err != nil || ttl < 0 {
		return nil, fmt.Errorf("CACHE_TTL_SECONDS must be a non-negative integer")
	}
	cfg.CacheTTLSeconds = ttl

	if v := os.Getenv("CACHE_MAX_SIZE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("CACHE_MAX_SIZE_BYTES must be a positive integer")
		}
		cfg.CacheMaxSizeBytes = &n
	}

	origins := envOrDefault("CORS_ORIGINS", "")
	if origins != "" {
		for _, o := range strings.Split(origins, ",") {
			cfg.CORSOrigins = append(cfg.CORSOrigins, strings.TrimSpace(o))
		}
	}

	if tokens := envOrDefault("ADMIN_WRITE_TOKENS", ""); tokens != "" {
		cfg.AdminWriteTokens = strings.Split(tokens, ",")
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the proxy listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the admin/metrics listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.MetricsHost + ":" + c.MetricsPort
}

var structValidate = validator.New()

func (c *Config) validate() error {
	if err := structValidate.Struct(c); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateBackends(); err != nil {
		return err
	}

	return c.validateCORS()
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	metricsPort, err := strconv.Atoi(c.MetricsPort)
	if err != nil || metricsPort < 1 || metricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 1 and 65535")
	}

	if c.Addr() == c.MetricsAddr() {
		return fmt.Errorf("METRICS_PORT must differ from PORT on the same host")
	}

	return nil
}

// validateBackends re-checks the scheme constraint the struct tag can't
// express: only http/https base URLs are accepted, matching the original
// prototype's UnsupportedBackendScheme rejection.
func (c *Config) validateBackends() error {
	for _, b := range c.Backends {
		u, err := url.Parse(b)
		if err != nil {
			return fmt.Errorf("invalid backend URL %q: %w", b, err)
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("unsupported backend scheme %q, only http/https allowed", u.Scheme)
		}

		if u.Host == "" {
			return fmt.Errorf("backend URL %q must include a host", b)
		}
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
