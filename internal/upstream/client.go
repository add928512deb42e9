// Package upstream provides the pooled HTTP client used to forward
// admitted requests to a selected backend.
package upstream

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout           = 5 * time.Second
	tlsHandshakeTimeout   = 5 * time.Second
	idleConnsPerHost      = 32
	idleConnTimeout       = 90 * time.Second
	expectContinueTimeout = 1 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Client wraps a pooled *http.Client configured for backend forwarding:
// connection reuse per host, redirects disabled (the proxy forwards
// exactly one hop and mirrors whatever status the backend returns),
// and a fixed overall request timeout independent of the per-request
// backend_timeout deadline callers apply via context.
type Client struct {
	http *http.Client
}

// New creates a Client. The client's own Timeout is always
// defaultRequestTimeout, a safety net distinct from the configured
// backend_timeout, which governs only the handler's per-request wait
// for response headers via context.WithTimeout. The two are
// independent knobs: a large backend_timeout must not widen or
// disable this client-level bound.
func New() *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   idleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: expectContinueTimeout,
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   defaultRequestTimeout,
			// The proxy owns redirect semantics: it mirrors the
			// backend's response status and headers verbatim rather
			// than following redirects on the client's behalf.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do issues req and returns the raw backend response. The caller is
// responsible for closing resp.Body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	return resp, nil
}
