// Package cache implements the gateway's bounded, TTL-expiring response
// cache. A single Cache instance is shared by every dispatch; it is read
// and written concurrently and guarded by one mutex, which is adequate at
// the target scale of a few thousand entries.
package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// entry is the stored record for one cache key.
type entry struct {
	body      json.RawMessage
	insertedAt time.Time
	hitCount  int64
}

// Cache is a TTL- and size-bounded key/value store keyed by
// upstream+tool+canonicalized arguments.
type Cache struct {
	enabled bool
	ttl     time.Duration
	maxSize int

	mu      sync.Mutex
	entries map[uint64]*entry
	// keys maps the internal fingerprint back to the literal spec key
	// (upstream:tool:canonicalArgs), used for prefix-matching invalidation.
	keys map[uint64]string

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// Option configures a Cache at construction.
type Option func(*Cache)

// WithTTL sets the entry time-to-live. Default 5 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithMaxSize sets the maximum number of entries. Default 1000.
func WithMaxSize(n int) Option {
	return func(c *Cache) { c.maxSize = n }
}

// WithEnabled toggles the cache outright; a disabled cache is a permanent
// miss on Get and a no-op on Set.
func WithEnabled(enabled bool) Option {
	return func(c *Cache) { c.enabled = enabled }
}

// New constructs a Cache and starts its background sweep goroutine. Callers
// must call Close to stop the sweep.
func New(opts ...Option) *Cache {
	c := &Cache{
		enabled: true,
		ttl:     5 * time.Minute,
		maxSize: 1000,
		entries: make(map[uint64]*entry),
		keys:    make(map[uint64]string),

		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	interval := c.ttl / 2
	if interval < 60*time.Second {
		interval = 60 * time.Second
	}
	go c.sweepLoop(interval)

	return c
}

// Key forms the literal spec cache key: upstream:tool:canonical(args).
// Canonicalization recursively sorts object keys so that semantically equal
// parameter objects, regardless of key order, hit the same entry.
func Key(upstreamName, tool string, args any) (string, error) {
	canon, err := canonicalJSON(args)
	if err != nil {
		return "", err
	}
	return upstreamName + ":" + tool + ":" + canon, nil
}

// fingerprint maps the literal key to the internal map key used by Cache,
// trading a (negligible at this scale) collision risk for a smaller map
// key type than the full string.
func fingerprint(literalKey string) uint64 {
	return xxhash.Sum64String(literalKey)
}

// Get returns the cached body for key if present and unexpired, and
// increments its hit count. It is the caller's job to have already checked
// that the mapping is cacheable.
func (c *Cache) Get(literalKey string) (json.RawMessage, bool) {
	if !c.enabled {
		return nil, false
	}

	fp := fingerprint(literalKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	if time.Since(e.insertedAt) > c.ttl {
		delete(c.entries, fp)
		delete(c.keys, fp)
		return nil, false
	}
	e.hitCount++
	return e.body, true
}

// Set inserts body under key, evicting one entry first if the cache is at
// capacity. A no-op when the cache is disabled.
func (c *Cache) Set(literalKey string, body json.RawMessage) {
	if !c.enabled {
		return
	}

	fp := fingerprint(literalKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fp]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[fp] = &entry{body: body, insertedAt: time.Now(), hitCount: 0}
	c.keys[fp] = literalKey
}

// evictLocked removes the entry minimizing insertedAt/(hitCount+1), a cheap
// proxy for "old and unpopular". Must be called with c.mu held.
func (c *Cache) evictLocked() {
	var (
		victim    uint64
		victimVal float64
		found     bool
	)
	for fp, e := range c.entries {
		score := float64(e.insertedAt.UnixNano()) / float64(e.hitCount+1)
		if !found || score < victimVal {
			victim, victimVal, found = fp, score, true
		}
	}
	if found {
		delete(c.entries, victim)
		delete(c.keys, victim)
	}
}

// Size returns the current number of entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate removes every entry whose literal key's first two segments
// (upstream, tool) match the given prefixes. Either may be empty to match
// any value; both empty clears the entire cache. Returns the number of
// entries removed.
func (c *Cache) Invalidate(upstreamName, tool string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, literalKey := range c.keys {
		up, t, _ := splitKey(literalKey)
		if upstreamName != "" && up != upstreamName {
			continue
		}
		if tool != "" && t != tool {
			continue
		}
		delete(c.entries, fp)
		delete(c.keys, fp)
		removed++
	}
	return removed
}

// splitKey extracts the upstream and tool segments from a literal cache
// key of the form "upstream:tool:canonicalArgs".
func splitKey(literalKey string) (upstream, tool, rest string) {
	first := indexByte(literalKey, ':')
	if first < 0 {
		return literalKey, "", ""
	}
	upstream = literalKey[:first]
	remainder := literalKey[first+1:]
	second := indexByte(remainder, ':')
	if second < 0 {
		return upstream, remainder, ""
	}
	return upstream, remainder[:second], remainder[second+1:]
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// sweepLoop periodically removes expired entries. Best-effort: Get still
// checks expiry itself because a sweep can lag behind ttl.
func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepOnce()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *Cache) sweepOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for fp, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, fp)
			delete(c.keys, fp)
		}
	}
}

// Close stops the background sweep goroutine and waits for it to exit.
func (c *Cache) Close() {
	close(c.stopSweep)
	<-c.sweepDone
}

// canonicalJSON marshals v such that object keys are sorted lexicographically
// at every depth, so two semantically-equal-but-differently-ordered
// parameter maps produce identical output.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}

	canon, err := marshalCanonical(generic)
	if err != nil {
		return "", err
	}
	return string(canon), nil
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kJSON...)
			buf = append(buf, ':')

			vJSON, err := marshalCanonical(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vJSON...)
		}
		buf = append(buf, '}')
		return buf, nil

	case []any:
		buf := []byte{'['}
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			itemJSON, err := marshalCanonical(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, itemJSON...)
		}
		buf = append(buf, ']')
		return buf, nil

	default:
		return json.Marshal(val)
	}
}
