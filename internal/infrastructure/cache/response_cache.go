// Package cache provides the in-memory response cache used to short-circuit
// repeated knowledge prompts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Up to this many expired entries are swept per insert before falling back
// to oldest-entry eviction.
const expiredSweepLimit = 10

type entry struct {
	response  string
	createdAt time.Time
	expiresAt time.Time
}

// ResponseCache is a bounded TTL cache keyed by prompt, tenant and user.
// All access is serialized behind a single mutex; entries never leave the
// process.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewResponseCache creates a cache holding at most maxEntries responses,
// each valid for ttl.
func NewResponseCache(ttl time.Duration, maxEntries int) *ResponseCache {
	return &ResponseCache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Key derives the cache key for a lookup. The prompt is trimmed and
// lowercased so trivially different phrasings of the same question share an
// entry, then hashed together with the tenant and user scope.
func Key(prompt, tenantID, userID string) string {
	normalized := strings.ToLower(strings.TrimSpace(prompt))
	sum := sha256.Sum256([]byte(normalized + "|" + tenantID + "|" + userID))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for the scope, if present and unexpired.
// Expired entries are removed on access.
func (c *ResponseCache) Get(prompt, tenantID, userID string) (string, bool) {
	key := Key(prompt, tenantID, userID)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.response, true
}

// Set stores a response for the scope. When the cache is full, expired
// entries are swept first (bounded scan) and the oldest entry is evicted if
// the sweep freed nothing.
func (c *ResponseCache) Set(prompt, tenantID, userID, response string) {
	key := Key(prompt, tenantID, userID)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		if c.sweepExpired(now) == 0 {
			c.evictOldest()
		}
	}

	c.entries[key] = entry{
		response:  response,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// Len returns the number of entries currently stored, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) sweepExpired(now time.Time) int {
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
			if removed >= expiredSweepLimit {
				break
			}
		}
	}
	return removed
}

func (c *ResponseCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
