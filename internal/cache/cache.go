package cache

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// CachedResponse represents a cached provider reply
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// GenerateCacheKey generates a cache key from the persona, intensity and prompt
func GenerateCacheKey(persona string, intensity float64, prompt string) string {
	h := sha256.New()
	h.Write([]byte(persona))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(intensity, 'f', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Cache stores replies in memory. Entries older than the TTL miss; a zero
// TTL keeps entries forever.
type Cache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

// New creates a Cache with the given TTL
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now}
}

// Get returns the cached reply for key
func (c *Cache) Get(key string) (string, bool) {
	val, ok := c.entries.Load(key)
	if !ok {
		return "", false
	}
	cached := val.(CachedResponse)
	if c.ttl > 0 && c.now().Sub(cached.Timestamp) > c.ttl {
		c.entries.Delete(key)
		return "", false
	}
	return cached.Response, true
}

// Put stores a reply under key
func (c *Cache) Put(key, response string) {
	c.entries.Store(key, CachedResponse{
		Response:  response,
		Timestamp: c.now(),
	})
}
