package cache

import (
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected a=1, got %q %v", v, ok)
	}
	// a is now most recent, so b is evicted
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRUCacheTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("x", 1)
	c.Set("y", 2)

	now = now.Add(30 * time.Second)
	if _, ok := c.Get("x"); !ok {
		t.Fatalf("expected x before expiry")
	}

	now = now.Add(time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}
	if _, ok := c.Get("x"); ok {
		t.Fatalf("expected x to expire")
	}
}

func TestLRUCachePurgeGeneration(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	gen := c.Generation()
	c.Set("k", 1)
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache after purge")
	}
	if c.SetIfGeneration(gen, "k", 2) {
		t.Fatalf("stale generation must be refused")
	}
	if !c.SetIfGeneration(c.Generation(), "k", 3) {
		t.Fatalf("current generation must be accepted")
	}
	if v, _ := c.Get("k"); v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
}

func TestManagerCleanNowAndStop(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("x", 1)
	now = now.Add(2 * time.Minute)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}
	// Stop without start must not block, and is safe to repeat.
	m.Stop()
	m.Stop()

	m2 := NewManager(nil)
	m2.StartCleanup(time.Millisecond)
	m2.Stop()
}
