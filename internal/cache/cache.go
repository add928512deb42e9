// Package cache implements the in-memory, TTL- and size-bounded response
// cache that shields backends from repeated identical requests.
package cache

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is an immutable cached response. Once inserted, an Entry is
// never mutated; eviction only ever removes the map reference to it.
type Entry struct {
	Status  int
	Header  http.Header
	Body    []byte
	Expires time.Time
	Size    int64
}

// Key builds the cache key for a request: the verbatim "<METHOD> <URI>"
// concatenation, where URI includes path and query.
func Key(method, uri string) string {
	return method + " " + uri
}

// Cache is the shared, concurrency-safe response cache. Lookups and
// inserts for different keys proceed in parallel; only the rare
// over-capacity eviction pass takes the
// exclusive section for longer than an O(1) map operation, and
// concurrent eviction passes are collapsed via singleflight so that a
// burst of inserts crossing the cap doesn't all walk and sort the same
// snapshot redundantly — eviction itself is documented as best-effort
// and tolerant of racing state, so collapsing it changes no observable
// behavior.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	size    atomic.Int64
	maxSize int64 // 0 means unbounded
	group   singleflight.Group
	nowFunc func() time.Time
}

// New creates a Cache. maxSize <= 0 disables size-based eviction.
func New(maxSize int64) *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
		nowFunc: time.Now,
	}
}

// Lookup returns the entry for key if present and fresh. An entry found
// to be expired is removed and reported as a miss.
func (c *Cache) Lookup(key string) (*Entry, bool) {
	now := c.nowFunc()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if e.Expires.After(now) {
		return e, true
	}

	c.removeExpired(key, now)

	return nil, false
}

func (c *Cache) removeExpired(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries[key]
	if !ok || cur.Expires.After(now) {
		return
	}

	delete(c.entries, key)
	c.size.Add(-cur.Size)
}

// Evicted reports a single entry reclaimed by an eviction pass, for the
// caller to surface as an admin/audit event.
type Evicted struct {
	Key   string
	Bytes int64
}

// Insert adds entry under key, replacing any prior entry for the same
// key, then runs an eviction pass if the cache is over its size cap.
// The newly inserted entry gets no special protection: it is part of the
// snapshot the eviction pass sorts, so it is evicted first when its
// expiry is the earliest. Returns the entries reclaimed by the eviction
// pass, if any ran.
func (c *Cache) Insert(key string, entry *Entry) []Evicted {
	c.mu.Lock()
	if old, ok := c.entries[key]; ok {
		c.size.Add(-old.Size)
	}
	c.entries[key] = entry
	c.mu.Unlock()

	c.size.Add(entry.Size)

	if c.maxSize > 0 && c.size.Load() > c.maxSize {
		v, _, _ := c.group.Do("evict", func() (any, error) {
			return c.evict(), nil
		})
		if evicted, ok := v.([]Evicted); ok {
			return evicted
		}
	}

	return nil
}

// evict implements shortest-TTL-first eviction: snapshot all entries,
// sort ascending by Expires, remove from the front until the aggregate
// size is back within the cap. Returns every entry it removed.
func (c *Cache) evict() []Evicted {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size.Load() <= c.maxSize {
		return nil
	}

	type kv struct {
		key   string
		entry *Entry
	}

	snapshot := make([]kv, 0, len(c.entries))
	for k, v := range c.entries {
		snapshot = append(snapshot, kv{k, v})
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].entry.Expires.Before(snapshot[j].entry.Expires)
	})

	var evicted []Evicted
	for _, item := range snapshot {
		if c.size.Load() <= c.maxSize {
			break
		}
		if _, ok := c.entries[item.key]; !ok {
			continue
		}
		delete(c.entries, item.key)
		c.size.Add(-item.entry.Size)
		evicted = append(evicted, Evicted{Key: item.key, Bytes: item.entry.Size})
	}

	return evicted
}

// Purge clears the cache entirely (used by the admin API).
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
	c.size.Store(0)
}

// Stats reports the current entry count and aggregate byte size.
func (c *Cache) Stats() (entries int, bytes int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), c.size.Load()
}
