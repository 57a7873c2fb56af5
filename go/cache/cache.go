// Package cache memoizes fully serialized tool responses. Deterministic
// read tools consult it before planning; concurrent misses for one key
// share a single in-flight computation.
package cache

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/highwayhash"
	"golang.org/x/sync/singleflight"
)

// TTLs of the deterministic read tools. Zero means no expiry.
const (
	TTLBars   = 300 * time.Second
	TTLChain  = 600 * time.Second
	TTLStatic = time.Duration(0)
)

// DefaultMaxEntries bounds the cache when no size is configured.
const DefaultMaxEntries = 4096

// fingerprintKey is the fixed HighwayHash key; changing it invalidates
// every fingerprint, so it is versioned alongside the envelope schema.
var fingerprintKey = []byte("stroll.history.fingerprint.v1...")

// Fingerprint derives the cache key for a tool call from the canonical
// concatenation of its arguments. The digest keeps keys short and uniform;
// the tool name stays in the clear for debuggability.
func Fingerprint(tool string, args ...string) string {
	var canon = tool + "|" + strings.Join(args, "|")
	var sum = highwayhash.Sum128([]byte(canon), fingerprintKey)
	return tool + ":" + hex.EncodeToString(sum[:])
}

type entry struct {
	payload    []byte
	insertedAt time.Time
	expiresAt  time.Time // Zero for no expiry.
}

// Cache is a TTL-bounded LRU of serialized responses with per-key
// singleflight fill.
type Cache struct {
	lru   *lru.Cache[string, entry]
	group singleflight.Group
}

// New returns a Cache bounded to maxEntries (DefaultMaxEntries if <= 0).
func New(maxEntries int) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	var inner, err = lru.NewWithEvict[string, entry](maxEntries,
		func(string, entry) { evictions.Inc() })
	if err != nil {
		return nil, fmt.Errorf("building response cache: %w", err)
	}
	return &Cache{lru: inner}, nil
}

// Get returns the live payload for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	var e, ok = c.lru.Get(key)
	if !ok {
		misses.Inc()
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		misses.Inc()
		return nil, false
	}
	hits.Inc()
	return e.payload, true
}

// Put stores payload under key with the given TTL (zero = no expiry).
func (c *Cache) Put(key string, payload []byte, ttl time.Duration) {
	var now = time.Now()
	var e = entry{payload: payload, insertedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.lru.Add(key, e)
}

// Do returns the cached payload for key, or fills it. Concurrent callers
// missing on the same key share one fill; the second return reports
// whether the payload came from cache without invoking fill.
func (c *Cache) Do(key string, ttl time.Duration, fill func() ([]byte, error)) ([]byte, bool, error) {
	if payload, ok := c.Get(key); ok {
		return payload, true, nil
	}

	var filled bool
	var v, err, _ = c.group.Do(key, func() (interface{}, error) {
		// A racing caller may have completed the fill while we waited.
		if payload, ok := c.Get(key); ok {
			return payload, nil
		}
		var payload, err = fill()
		if err != nil {
			return nil, err
		}
		c.Put(key, payload, ttl)
		filled = true
		return payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), !filled, nil
}

// Len returns the current entry count.
func (c *Cache) Len() int { return c.lru.Len() }
