// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/pkg/models"
)

// Cache stores rendered pages by URL.
//
// A run keeps detail pages here so the location resolver and the image
// resolver share one navigation per lot.
type Cache interface {
	// Get returns the cached page and whether it was found and fresh.
	Get(url string) (*models.Page, bool)

	// Set stores a page with the given TTL, replacing any previous entry.
	Set(url string, page *models.Page, ttl time.Duration) error

	// Delete removes an entry. Missing keys are not an error.
	Delete(url string) error

	// Clear removes all entries.
	Clear() error

	// Close stops background work.
	Close()
}

type cacheEntry struct {
	Page      *models.Page
	ExpiresAt time.Time
	Key       string
	Size      int64
}

// MemoryCache is an in-memory page cache with LRU eviction bounded by the
// approximate byte size of the stored markup
type MemoryCache struct {
	store   map[string]*list.Element
	lruList *list.List
	mu      sync.RWMutex
	maxSize int64
	size    int64
	ttl     time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	hits    uint64
	misses  uint64
}

// DefaultTTL applies when Set is called without a TTL
const DefaultTTL = 10 * time.Minute

// NewMemoryCache creates a page cache holding at most maxSizeBytes of markup
func NewMemoryCache(maxSizeBytes int64, ttl time.Duration) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 64 * 1024 * 1024
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &MemoryCache{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		ttl:     ttl,
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.cleanupExpired()

	return c
}

// Get retrieves a cached page and marks it most recently used
func (mc *MemoryCache) Get(url string) (*models.Page, bool) {
	mc.mu.Lock()
	element, exists := mc.store[url]
	if !exists {
		mc.misses++
		mc.mu.Unlock()
		return nil, false
	}

	entry := element.Value.(*cacheEntry)
	if time.Now().After(entry.ExpiresAt) {
		mc.misses++
		mc.remove(element)
		mc.mu.Unlock()
		return nil, false
	}

	mc.lruList.MoveToFront(element)
	mc.hits++
	mc.mu.Unlock()

	log.Debug().Str("url", url).Msg("Page cache hit")
	return entry.Page, true
}

// Set stores a page. A zero ttl uses the cache default.
func (mc *MemoryCache) Set(url string, page *models.Page, ttl time.Duration) error {
	if page == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = mc.ttl
	}

	entry := &cacheEntry{
		Page:      page,
		ExpiresAt: time.Now().Add(ttl),
		Key:       url,
		Size:      pageSize(page),
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[url]; exists {
		mc.size -= element.Value.(*cacheEntry).Size
		element.Value = entry
		mc.lruList.MoveToFront(element)
		mc.size += entry.Size
		return nil
	}

	for mc.size+entry.Size > mc.maxSize && mc.lruList.Len() > 0 {
		mc.evictLRU()
	}

	mc.store[url] = mc.lruList.PushFront(entry)
	mc.size += entry.Size

	log.Debug().
		Str("url", url).
		Dur("ttl", ttl).
		Int64("size_bytes", entry.Size).
		Msg("Cached page")

	return nil
}

// Delete removes a cached page
func (mc *MemoryCache) Delete(url string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[url]; exists {
		mc.remove(element)
	}
	return nil
}

// Clear removes all cached pages and resets counters
func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.store = make(map[string]*list.Element)
	mc.lruList = list.New()
	mc.size = 0
	mc.hits = 0
	mc.misses = 0
	return nil
}

// Close stops the background cleanup goroutine
func (mc *MemoryCache) Close() {
	mc.cancel()
}

// Len returns the number of entries, expired ones included until swept
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.lruList.Len()
}

// Stats summarises cache usage for log lines
type Stats struct {
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"size_bytes"`
	MaxSize   int64   `json:"max_size"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats returns cache statistics including hit rate
func (mc *MemoryCache) Stats() Stats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := Stats{
		Entries:   mc.lruList.Len(),
		SizeBytes: mc.size,
		MaxSize:   mc.maxSize,
		Hits:      mc.hits,
		Misses:    mc.misses,
	}
	if total := mc.hits + mc.misses; total > 0 {
		s.HitRate = float64(mc.hits) / float64(total) * 100
	}
	return s
}

// remove must be called with the lock held
func (mc *MemoryCache) remove(element *list.Element) {
	entry := element.Value.(*cacheEntry)
	mc.lruList.Remove(element)
	delete(mc.store, entry.Key)
	mc.size -= entry.Size
}

// evictLRU must be called with the lock held
func (mc *MemoryCache) evictLRU() {
	element := mc.lruList.Back()
	if element == nil {
		return
	}
	log.Debug().Str("url", element.Value.(*cacheEntry).Key).Msg("Evicted page (LRU)")
	mc.remove(element)
}

func (mc *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			var next *list.Element
			for element := mc.lruList.Front(); element != nil; element = next {
				next = element.Next()
				if now.After(element.Value.(*cacheEntry).ExpiresAt) {
					mc.remove(element)
				}
			}
			mc.mu.Unlock()
		case <-mc.ctx.Done():
			return
		}
	}
}

// pageSize approximates the memory held by a page
func pageSize(p *models.Page) int64 {
	return int64(len(p.HTML)+len(p.Text)+len(p.Title)+len(p.URL)) + 512
}
