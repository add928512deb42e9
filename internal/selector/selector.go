// Package selector implements round-robin backend selection over a fixed
// pool of upstream base URLs.
package selector

import (
	"net/url"
	"sync/atomic"
)

// Selector chooses a backend from a frozen pool using round-robin. It
// holds no state beyond the pool itself and a shared monotonic cursor;
// wrapping addition on the cursor is acceptable since only its value
// modulo len(backends) is ever observed.
type Selector struct {
	backends []*url.URL
	cursor   atomic.Uint64
}

// New creates a Selector over the given backend pool. The pool is never
// mutated after construction.
func New(backends []*url.URL) *Selector {
	return &Selector{backends: backends}
}

// Len returns the number of backends in the pool.
func (s *Selector) Len() int {
	return len(s.backends)
}

// Select atomically fetch-and-increments the cursor and returns the
// backend at cursor mod len(backends). Callers must check Len() > 0
// first; Select panics on an empty pool, matching a programmer error
// rather than a runtime condition (the handler is responsible for
// returning 502 before ever reaching here).
func (s *Selector) Select() *url.URL {
	n := uint64(len(s.backends))
	i := s.cursor.Add(1) - 1
	return s.backends[i%n]
}
