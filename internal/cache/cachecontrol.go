package cache

import (
	"net/http"
	"strconv"
	"strings"
)

// Decision is the outcome of evaluating a backend response's
// Cache-Control header against the cacheability gate.
type Decision struct {
	Cacheable bool
	TTL       int // seconds; meaningful only when Cacheable
}

// ResolveTTL implements the TTL-resolution chain:
//  1. no-store/no-cache anywhere in Cache-Control aborts caching.
//  2. s-maxage=<N>, if numeric and nonzero, wins; =0 means not cacheable.
//  3. else max-age=<N>, same rule.
//  4. else the statically configured default TTL, if nonzero.
//  5. else not cacheable.
//
// A malformed numeric directive (e.g. "max-age=abc") is treated as
// absent and falls through to the next rule; an explicit zero is not
// "absent" and short-circuits straight to not-cacheable instead of
// falling through to the configured default.
func ResolveTTL(header http.Header, defaultTTL int) Decision {
	directives := parseCacheControl(header.Get("Cache-Control"))

	if _, ok := directives["no-store"]; ok {
		return Decision{Cacheable: false}
	}
	if _, ok := directives["no-cache"]; ok {
		return Decision{Cacheable: false}
	}

	if v, ok := directives["s-maxage"]; ok {
		if n, ok := parseSeconds(v); ok {
			if n == 0 {
				return Decision{Cacheable: false}
			}
			return Decision{Cacheable: true, TTL: n}
		}
	}

	if v, ok := directives["max-age"]; ok {
		if n, ok := parseSeconds(v); ok {
			if n == 0 {
				return Decision{Cacheable: false}
			}
			return Decision{Cacheable: true, TTL: n}
		}
	}

	if defaultTTL > 0 {
		return Decision{Cacheable: true, TTL: defaultTTL}
	}

	return Decision{Cacheable: false}
}

// parseCacheControl splits a Cache-Control header into a directive-name
// -> value map. Quoted numeric values are unquoted; unknown directives
// are kept (and silently ignored by callers that don't look them up).
func parseCacheControl(raw string) map[string]string {
	directives := make(map[string]string)
	if raw == "" {
		return directives
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, value, hasValue := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if hasValue {
			value = strings.Trim(strings.TrimSpace(value), `"`)
		}
		directives[name] = value
	}

	return directives
}

// parseSeconds parses a directive value as a non-negative integer
// second count. Returns ok=false for anything non-numeric, which the
// caller treats as if the directive were absent.
func parseSeconds(v string) (int, bool) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
