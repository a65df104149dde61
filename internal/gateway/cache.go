package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/certiform/credential-gateway/internal/metrics"
)

const (
	// DefaultCacheTTL is how long a successful read stays servable.
	DefaultCacheTTL = 30 * time.Second
	// DefaultMaxCacheEntries bounds the store; the oldest-inserted entry is
	// evicted when the bound is exceeded.
	DefaultMaxCacheEntries = 100

	cacheCleanupInterval = time.Minute
)

// invalidationDomains maps a path segment of the mutated domain to the
// request-body field carrying the entity id. A successful mutation removes
// every cached entry whose key contains both the segment and that id.
var invalidationDomains = []struct {
	segment string
	idField string
}{
	{segment: "courses", idField: "course_id"},
	{segment: "projects", idField: "project_id"},
	{segment: "credentials", idField: "credential_id"},
}

type cacheEntry struct {
	data       []byte
	insertedAt time.Time
}

// RequestCache caches successful gateway reads keyed by path+query. It is
// safe for concurrent use; the TTL window and the size bound are enforced
// on every access.
type RequestCache struct {
	mu             sync.Mutex
	store          *gocache.Cache
	ttl            time.Duration
	maxEntries     int
	metricsService metrics.MetricsService
}

func NewRequestCache(metricsService metrics.MetricsService) *RequestCache {
	return newRequestCache(DefaultCacheTTL, DefaultMaxCacheEntries, metricsService)
}

func newRequestCache(ttl time.Duration, maxEntries int, metricsService metrics.MetricsService) *RequestCache {
	return &RequestCache{
		store:          gocache.New(ttl, cacheCleanupInterval),
		ttl:            ttl,
		maxEntries:     maxEntries,
		metricsService: metricsService,
	}
}

// Get returns the cached payload for key if present and younger than the
// TTL. Stale entries are evicted and reported as misses.
func (c *RequestCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, found := c.store.Get(key)
	if !found {
		c.incMiss()
		return nil, false
	}
	entry := raw.(cacheEntry)
	if time.Since(entry.insertedAt) >= c.ttl {
		c.store.Delete(key)
		c.incEviction("expired")
		c.incMiss()
		return nil, false
	}
	c.incHit()
	return entry.data, true
}

// Put inserts or overwrites the entry for key, then enforces the size bound
// by evicting the oldest-inserted entry.
func (c *RequestCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, cacheEntry{data: data, insertedAt: time.Now()}, gocache.DefaultExpiration)

	for c.store.ItemCount() > c.maxEntries {
		oldestKey := ""
		var oldestAt time.Time
		for itemKey, item := range c.store.Items() {
			entry := item.Object.(cacheEntry)
			if oldestKey == "" || entry.insertedAt.Before(oldestAt) {
				oldestKey = itemKey
				oldestAt = entry.insertedAt
			}
		}
		if oldestKey == "" {
			break
		}
		c.store.Delete(oldestKey)
		c.incEviction("capacity")
	}
}

// Invalidate removes every cached entry related to the entity mutated by a
// successful write. The entity id is read from the request body field of
// the domain matching the mutation path; entries for other domains and ids
// are untouched. Malformed bodies are a no-op, never an error.
func (c *RequestCache) Invalidate(mutationPath string, requestBody []byte) {
	var body map[string]any
	if len(requestBody) > 0 {
		// Mutations with non-JSON bodies carry no entity id to match on.
		if err := json.Unmarshal(requestBody, &body); err != nil {
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, domain := range invalidationDomains {
		if !strings.Contains(mutationPath, domain.segment) {
			continue
		}
		id, ok := body[domain.idField].(string)
		if !ok || id == "" {
			continue
		}
		for itemKey := range c.store.Items() {
			if strings.Contains(itemKey, domain.segment) && strings.Contains(itemKey, id) {
				c.store.Delete(itemKey)
				c.incEviction("invalidated")
			}
		}
	}
}

// Len returns the number of live entries.
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ItemCount()
}

func (c *RequestCache) incHit() {
	if c.metricsService != nil {
		c.metricsService.IncCacheHit()
	}
}

func (c *RequestCache) incMiss() {
	if c.metricsService != nil {
		c.metricsService.IncCacheMiss()
	}
}

func (c *RequestCache) incEviction(reason string) {
	if c.metricsService != nil {
		c.metricsService.IncCacheEviction(reason)
	}
}
