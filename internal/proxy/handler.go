// Package proxy implements the admission, cache-lookup, backend-selection,
// forwarding, and response-mirroring pipeline that fronts the configured
// backends.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coreproxy/edgeproxy/internal/cache"
	"github.com/coreproxy/edgeproxy/internal/metrics"
	"github.com/coreproxy/edgeproxy/internal/ratelimit"
	"github.com/coreproxy/edgeproxy/internal/sanitize"
	"github.com/coreproxy/edgeproxy/internal/selector"
	"github.com/coreproxy/edgeproxy/internal/upstream"
)

// Event is a notable pipeline occurrence surfaced to operator tooling via
// the admin event stream. Handler never blocks on delivery.
type Event struct {
	Kind   string // "denied", "cache_eviction", "backend_selected", "backend_empty"
	Detail string
	Bytes  int64 // reclaimed bytes; meaningful only for "cache_eviction"
	Time   time.Time
}

// Handler is the proxy's request pipeline.
type Handler struct {
	cfg      *Config
	selector *selector.Selector
	limiter  *ratelimit.Table // nil when rate limiting disabled
	cache    *cache.Cache     // nil when caching disabled
	upstream *upstream.Client
	log      *logrus.Logger
	events   chan<- Event // nil-safe: sends are best-effort and non-blocking
}

// New builds a Handler from cfg. Pass a nil events channel to disable
// event emission entirely.
func New(cfg *Config, log *logrus.Logger, events chan<- Event) *Handler {
	h := &Handler{
		cfg:      cfg,
		selector: selector.New(cfg.Backends),
		upstream: upstream.New(),
		log:      log,
		events:   events,
	}

	if cfg.RateLimitEnabled() {
		h.limiter = ratelimit.New(*cfg.RateLimitPerMinute, *cfg.RateLimitBurst)
	}

	var maxCacheBytes int64
	if cfg.CacheMaxSizeBytes != nil {
		maxCacheBytes = *cfg.CacheMaxSizeBytes
	}
	if cfg.CacheEnabled() {
		h.cache = cache.New(maxCacheBytes)
	}

	return h
}

// Cache exposes the underlying response cache for the admin surface's
// status/purge endpoints. Returns nil when caching is disabled.
func (h *Handler) Cache() *cache.Cache { return h.cache }

func (h *Handler) emit(kind, detail string) {
	h.emitBytes(kind, detail, 0)
}

func (h *Handler) emitBytes(kind, detail string, bytes int64) {
	if h.events == nil {
		return
	}
	select {
	case h.events <- Event{Kind: kind, Detail: detail, Bytes: bytes, Time: time.Now()}:
	default:
	}
}

// ServeHTTP runs one request through the full pipeline: admit, look up
// cache, select a backend, forward, mirror the response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := h.serve(w, r)
	metrics.RequestsTotal.WithLabelValues(r.Method, statusLabel(status)).Inc()
	metrics.RequestDuration.WithLabelValues(r.Method, statusLabel(status)).Observe(time.Since(start).Seconds())
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) int {
	if h.cfg.MaxRequestSizeBytes > 0 {
		if r.ContentLength > h.cfg.MaxRequestSizeBytes {
			return h.writeStatus(w, http.StatusRequestEntityTooLarge)
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestSizeBytes)
	}

	// 1. Admit.
	if h.selector.Len() == 0 {
		h.emit("backend_empty", r.URL.Path)
		return h.writeStatus(w, http.StatusBadGateway)
	}

	if h.limiter != nil {
		ip := ratelimit.ClientIP(r)
		if !h.limiter.Allow(ip) {
			metrics.RateLimitDeniedTotal.Inc()
			h.emit("denied", ip)
			h.log.WithField("ip", ip).Debug("rate limit denied request")
			return h.writeStatus(w, http.StatusTooManyRequests)
		}
	}

	// 2. Cache lookup.
	key := cache.Key(r.Method, r.URL.RequestURI())
	if h.cache != nil {
		if entry, ok := h.cache.Lookup(key); ok {
			metrics.CacheHitsTotal.Inc()
			return h.writeEntry(w, entry)
		}
		metrics.CacheMissesTotal.Inc()
	}

	// 3. Select & rewrite.
	backend := h.selector.Select()
	metrics.BackendSelectedTotal.WithLabelValues(backend.Host).Inc()
	h.emit("backend_selected", backend.Host)

	target, err := joinURL(backend, r.URL)
	if err != nil {
		h.log.WithError(err).Error("failed to build upstream URL")
		return h.writeStatus(w, http.StatusInternalServerError)
	}

	// 4. Forward.
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.BackendTimeout)
	defer cancel()

	outHeader, drops := sanitize.Request(r.Header)
	for _, d := range drops {
		entry := h.log.WithField("header", d.Name).WithField("reason", d.Reason)
		if d.Reason == "invalid name length" || d.Reason == "invalid value" || d.Reason == "protocol-invalid value" {
			entry.Warn("dropped malformed request header")
		} else {
			entry.Debug("dropped request header")
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		h.log.WithError(err).Error("failed to build upstream request")
		return h.writeStatus(w, http.StatusInternalServerError)
	}
	req.Header = outHeader
	req.ContentLength = r.ContentLength

	upstreamStart := time.Now()
	resp, err := h.upstream.Do(req)
	upstreamElapsed := time.Since(upstreamStart)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.UpstreamErrorsTotal.WithLabelValues("timeout").Inc()
			h.log.WithField("backend", backend.Host).WithField("timeout", h.cfg.BackendTimeout).Warn("upstream request timed out")
			return h.writeStatus(w, http.StatusGatewayTimeout)
		}
		metrics.UpstreamErrorsTotal.WithLabelValues("transport").Inc()
		h.log.WithError(err).Warn("upstream transport failure")
		return h.writeStatus(w, http.StatusBadGateway)
	}
	defer resp.Body.Close()

	metrics.UpstreamDuration.WithLabelValues(backend.Host, statusLabel(resp.StatusCode)).Observe(upstreamElapsed.Seconds())

	// 5 & 6. Mirror response, decide on caching.
	respHeader := sanitize.Response(resp.Header)
	decision := cache.ResolveTTL(resp.Header, h.cfg.CacheTTLSeconds)

	if h.cache != nil && r.Method == http.MethodGet && resp.StatusCode == http.StatusOK && decision.Cacheable {
		return h.bufferAndCache(w, resp, respHeader, decision, key)
	}

	return h.stream(w, resp, respHeader)
}

func (h *Handler) stream(w http.ResponseWriter, resp *http.Response, header http.Header) int {
	copyHeader(w.Header(), header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.log.WithError(err).Warn("client disconnected mid-stream")
	}
	return resp.StatusCode
}

func (h *Handler) bufferAndCache(w http.ResponseWriter, resp *http.Response, header http.Header, decision cache.Decision, key string) int {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("mid_body_read").Inc()
		h.log.WithError(err).Warn("mid-body read failure while buffering for cache")
		return h.writeStatus(w, http.StatusBadGateway)
	}

	entry := &cache.Entry{
		Status:  resp.StatusCode,
		Header:  header,
		Body:    body,
		Expires: time.Now().Add(time.Duration(decision.TTL) * time.Second),
		Size:    int64(len(body)),
	}
	evicted := h.cache.Insert(key, entry)
	for _, e := range evicted {
		metrics.CacheEvictionsTotal.Inc()
		h.emitBytes("cache_eviction", e.Key, e.Bytes)
	}

	stats, bytes := h.cache.Stats()
	metrics.CacheEntries.Set(float64(stats))
	metrics.CacheBytes.Set(float64(bytes))

	return h.writeEntry(w, entry)
}

func (h *Handler) writeEntry(w http.ResponseWriter, entry *cache.Entry) int {
	copyHeader(w.Header(), entry.Header)
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
	return entry.Status
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int) int {
	w.WriteHeader(status)
	return status
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// joinURL builds the outbound URL: the backend's path is a prefix to the
// inbound request's path, and the inbound query string is preserved
// verbatim.
func joinURL(backend *url.URL, in *url.URL) (*url.URL, error) {
	out := *backend
	out.Path = singleJoiningSlash(backend.Path, in.Path)
	out.RawQuery = in.RawQuery
	if out.Host == "" {
		return nil, errors.New("backend URL has no host")
	}
	return &out, nil
}

func singleJoiningSlash(a, b string) string {
	aSlash := len(a) > 0 && a[len(a)-1] == '/'
	bSlash := len(b) > 0 && b[0] == '/'
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	default:
		return a + b
	}
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
