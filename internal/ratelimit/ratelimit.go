// Package ratelimit implements the per-client token-bucket admission
// gate described in spec §4.2.
package ratelimit

import (
	"hash/fnv"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	numShards = 32
	// staleAfter bounds per-IP memory growth (spec §9's first open
	// question): an IP that hasn't been seen in this long is evicted
	// from the table, so a long-running process with many transient
	// clients does not accumulate buckets forever.
	staleAfter   = 10 * time.Minute
	shardCapacity = 8192
)

// bucket is the mutable per-IP state. tokens and lastRefill are only
// ever touched while the owning shard's mutex is held.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Table is the shared, concurrency-safe token-bucket table (spec's
// TokenBucket table, §3). It is sharded by a hash of the client IP so
// unrelated clients can be admitted in parallel; only requests that hash
// to the same shard ever contend on the same mutex.
type Table struct {
	shards     [numShards]*shard
	ratePerSec float64
	burst      float64
	nowFunc    func() time.Time
}

type shard struct {
	mu  sync.Mutex
	lru *lru.LRU[string, *bucket]
}

// New creates a Table for the given per-minute rate and burst size.
// Both must be positive; callers should not construct a Table at all
// when rate limiting is disabled in configuration.
func New(perMinute, burst float64) *Table {
	t := &Table{
		ratePerSec: perMinute / 60,
		burst:      burst,
		nowFunc:    time.Now,
	}
	for i := range t.shards {
		t.shards[i] = &shard{lru: lru.NewLRU[string, *bucket](shardCapacity, nil, staleAfter)}
	}
	return t
}

// Allow reports whether a request from clientIP may proceed, mutating
// the bucket's token count as a side effect. The refill-then-decrement
// sequence for a single IP is atomic with respect to other checks for
// that same IP because it runs entirely under the owning shard's lock.
func (t *Table) Allow(clientIP string) bool {
	if clientIP == "" {
		return true
	}

	s := t.shards[shardFor(clientIP)]
	now := t.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.lru.Get(clientIP)
	if !ok {
		// Zero-initial-tokens: a newly observed client starts empty so
		// it cannot spend a cold-start burst before its first refill.
		b = &bucket{tokens: 0, lastRefill: now}
		s.lru.Add(clientIP, b)
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	b.tokens += elapsed * t.ratePerSec
	if b.tokens > t.burst {
		b.tokens = t.burst
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}

	return false
}

func shardFor(ip string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ip))
	return h.Sum32() % numShards
}

// ClientIP resolves the admission-relevant client IP per spec §4.2: the
// first comma-separated, parseable token of X-Forwarded-For, else the
// request's remote peer address. Returns "" if neither yields an IP, in
// which case the caller must allow the request.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if ip := net.ParseIP(r.RemoteAddr); ip != nil {
			return ip.String()
		}
		return ""
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}

	return ""
}
