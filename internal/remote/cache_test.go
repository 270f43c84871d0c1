package remote

import (
	"fmt"
	"testing"
)

func TestFIFOCacheEvictsOldestInserted(t *testing.T) {
	c := newFIFOCache[int](100)
	for i := 0; i < 100; i++ {
		c.put(fmt.Sprintf("k%d", i), i)
	}

	// A lookup must not refresh insertion order — this is FIFO, not LRU.
	if _, ok := c.get("k0"); !ok {
		t.Fatal("k0 missing before eviction")
	}

	c.put("k100", 100)

	if c.len() != 100 {
		t.Errorf("len = %d, want 100", c.len())
	}
	if _, ok := c.get("k0"); ok {
		t.Error("k0 should have been evicted as the oldest-inserted key")
	}
	if _, ok := c.get("k1"); !ok {
		t.Error("k1 should survive")
	}
	if v, ok := c.get("k100"); !ok || v != 100 {
		t.Errorf("k100 = %d, %v", v, ok)
	}
}

func TestFIFOCacheOverwriteKeepsPosition(t *testing.T) {
	c := newFIFOCache[string](2)
	c.put("a", "1")
	c.put("b", "2")
	c.put("a", "updated") // overwrite, no eviction
	if c.len() != 2 {
		t.Fatalf("len = %d, want 2", c.len())
	}

	c.put("c", "3") // "a" is still oldest-inserted
	if _, ok := c.get("a"); ok {
		t.Error("a should have been evicted")
	}
	if v, _ := c.get("b"); v != "2" {
		t.Error("b should survive")
	}
}
