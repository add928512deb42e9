// Package sanitize implements pure header-sanitization rules for the
// reverse-proxy's request and response legs.
package sanitize

import (
	"net/http"
	"net/textproto"
	"strings"
	"unicode/utf8"
)

const (
	maxHeaderNameBytes  = 256
	maxHeaderValueBytes = 16 * 1024
)

// hopByHop is the set of headers that apply only to a single transport
// leg and must never be forwarded by an intermediary.
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
}

var authHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
}

// Drop reports why sanitize.Request dropped a header, for WARN/DEBUG
// logging by the caller. Request returns a nil slice of them when nothing
// was dropped.
type Drop struct {
	Name   string
	Reason string
}

// Request sanitizes the headers of an outbound (to-backend) request,
// per spec §4.3. Order is preserved; repeated header names remain
// repeated. The returned drops slice records every header that was
// removed and why, for observability.
func Request(src http.Header) (http.Header, []Drop) {
	out := make(http.Header, len(src))
	var drops []Drop

	for name, values := range src {
		lower := strings.ToLower(name)

		if hopByHop[lower] {
			drops = append(drops, Drop{name, "hop-by-hop"})
			continue
		}

		if len(name) == 0 || len(name) > maxHeaderNameBytes {
			drops = append(drops, Drop{name, "invalid name length"})
			continue
		}

		if authHeaders[lower] {
			drops = append(drops, Drop{name, "authentication header"})
			continue
		}

		for _, v := range values {
			cleaned, ok := sanitizeValue(v)
			if !ok {
				drops = append(drops, Drop{name, "invalid value"})
				continue
			}
			if !validHeaderValue(cleaned) {
				drops = append(drops, Drop{name, "protocol-invalid value"})
				continue
			}
			out[textproto.CanonicalMIMEHeaderKey(name)] = append(out[textproto.CanonicalMIMEHeaderKey(name)], cleaned)
		}
	}

	return out, drops
}

// sanitizeValue validates a single header value: size bound, UTF-8
// validity, and absence of control characters other than horizontal
// tab. The trimmed value is returned.
func sanitizeValue(v string) (string, bool) {
	if len(v) > maxHeaderValueBytes {
		return "", false
	}

	if !utf8.ValidString(v) {
		return "", false
	}

	for _, r := range v {
		if r == '\t' {
			continue
		}
		if r < 0x20 || r == 0x7f {
			return "", false
		}
	}

	return strings.Trim(v, " \t\r\n"), true
}

// validHeaderValue performs the protocol's own header-value sanity
// check (no bare CR/LF, which would allow header/request smuggling).
func validHeaderValue(v string) bool {
	return !strings.ContainsAny(v, "\r\n")
}

// Response sanitizes the headers of an inbound (from-backend) response
// for forwarding to the client: only hop-by-hop stripping applies, per
// spec §4.3 — no length/UTF-8/control-character/auth-drop rules on the
// response leg.
func Response(src http.Header) http.Header {
	out := make(http.Header, len(src))

	for name, values := range src {
		if hopByHop[strings.ToLower(name)] {
			continue
		}
		out[textproto.CanonicalMIMEHeaderKey(name)] = append([]string(nil), values...)
	}

	return out
}
