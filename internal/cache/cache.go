// Package cache holds recent card detections keyed by recognized text, so
// repeated scans of the same card skip the matcher service. Entries live in
// process memory only.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/cardfolio/cardscan/internal/models"
)

const (
	DefaultCapacity = 100
	DefaultTTL      = 5 * time.Minute
)

// Stats reports cache occupancy.
type Stats struct {
	Size     int
	Capacity int
	TTL      time.Duration
}

type entry struct {
	value      *models.CardDetectionResult
	insertedAt time.Time
}

// Cache is a bounded TTL map safe for concurrent use. At capacity the
// oldest-inserted entry is evicted first; expired entries are dropped lazily
// when read.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	order    []string
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// New creates a cache. Non-positive capacity or TTL select the defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:  make(map[string]entry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Key derives the cache key for recognized text and a card-type hint. Text is
// normalized (case, whitespace) before hashing so trivially different OCR
// runs of the same label share an entry.
func Key(text string, hint models.CardType) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]) + "|" + string(hint)
}

// Get returns the entry for key if present and not expired.
func (c *Cache) Get(key string) (*models.CardDetectionResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) < c.ttl {
		return e.value, true
	}

	// Expired. Re-check under the write lock; another goroutine may have
	// refreshed the key in between.
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && c.now().Sub(cur.insertedAt) >= c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
	}
	c.mu.Unlock()
	return nil, false
}

// Set inserts or overwrites an entry, evicting the oldest-inserted entries
// when a new key would exceed capacity.
func (c *Cache) Set(key string, value *models.CardDetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = entry{value: value, insertedAt: c.now()}
		return
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = entry{value: value, insertedAt: c.now()}
	c.order = append(c.order, key)
}

// Stats sweeps expired entries and reports current occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepExpired()
	return Stats{Size: len(c.entries), Capacity: c.capacity, TTL: c.ttl}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.order = nil
}

func (c *Cache) sweepExpired() {
	now := c.now()
	kept := c.order[:0]
	for _, key := range c.order {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
