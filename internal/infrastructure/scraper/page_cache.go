package scraper

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"jan-server/services/grant-scout/internal/infrastructure/metrics"
)

// PageCache keeps recently scraped pages per (site, query) for a TTL.
type PageCache struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	pages     []Page
	expiresAt time.Time
}

// NewPageCache returns nil, disabling caching, when size or ttl is not
// positive.
func NewPageCache(size int, ttl time.Duration) (*PageCache, error) {
	if size <= 0 || ttl <= 0 {
		return nil, nil
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &PageCache{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (c *PageCache) Get(site, query string) ([]Page, bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey(site, query)
	val, found := c.cache.Get(key)
	if !found {
		metrics.RecordPageCacheLookup(false)
		return nil, false
	}
	entry := val.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.cache.Remove(key)
		metrics.RecordPageCacheLookup(false)
		return nil, false
	}
	metrics.RecordPageCacheLookup(true)
	return entry.pages, true
}

func (c *PageCache) Set(site, query string, pages []Page) {
	if c == nil || len(pages) == 0 {
		return
	}
	c.cache.Add(cacheKey(site, query), cacheEntry{
		pages:     pages,
		expiresAt: c.now().Add(c.ttl),
	})
}

func cacheKey(site, query string) string {
	return site + "\x00" + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
