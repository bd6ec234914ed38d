package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/law-makers/lotscout/pkg/models"
)

func page(url string, n int) *models.Page {
	return &models.Page{URL: url, HTML: strings.Repeat("x", n)}
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(0, 0)
	defer c.Close()

	if _, ok := c.Get("https://www.copart.com/lot/1"); ok {
		t.Fatal("Expected miss on empty cache")
	}

	p := page("https://www.copart.com/lot/1", 10)
	if err := c.Set(p.URL, p, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get(p.URL)
	if !ok || got != p {
		t.Fatalf("Expected cached page, got %v (ok=%v)", got, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v", stats)
	}
	if stats.HitRate != 50 {
		t.Errorf("Expected hit rate 50, got %v", stats.HitRate)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(0, 0)
	defer c.Close()

	p := page("u", 1)
	c.Set("u", p, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("u"); ok {
		t.Error("Expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry removed, got %d entries", c.Len())
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	// each page costs 1000 + 512 overhead + len(url)
	c := NewMemoryCache(4000, time.Minute)
	defer c.Close()

	c.Set("a", page("a", 1000), 0)
	c.Set("b", page("b", 1000), 0)
	c.Get("a")
	c.Set("c", page("c", 1000), 0)

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("Expected %s to survive eviction", k)
		}
	}
}

func TestMemoryCache_ReplaceDeleteClear(t *testing.T) {
	c := NewMemoryCache(0, 0)
	defer c.Close()

	c.Set("k", page("k", 100), 0)
	c.Set("k", page("k", 10), 0)
	if c.Len() != 1 {
		t.Fatalf("Expected 1 entry after replace, got %d", c.Len())
	}
	if got := c.Stats().SizeBytes; got != pageSize(page("k", 10)) {
		t.Errorf("Expected size of replacement, got %d", got)
	}

	c.Delete("k")
	c.Delete("missing")
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}

	c.Set("x", page("x", 1), 0)
	c.Clear()
	if c.Len() != 0 || c.Stats().SizeBytes != 0 {
		t.Error("Expected Clear to reset the cache")
	}

	if err := c.Set("nil", nil, 0); err != nil || c.Len() != 0 {
		t.Error("Expected nil page to be ignored")
	}
}
