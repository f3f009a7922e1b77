package cache

import (
	"sync"
	"testing"
)

func TestPutUpdatesExistingEntryWithoutGrowing(t *testing.T) {
	c := NewLRU[string, string](2)
	c.Put("alpha", "x")
	c.Put("beta", "y")
	c.Put("alpha", "z")

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if v, ok := c.Get("alpha"); !ok || v != "z" {
		t.Fatalf("alpha = %q %v", v, ok)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a was used recently and should remain")
	}
}

func TestRemoveAndPurge(t *testing.T) {
	c := NewLRU[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be gone")
	}
	c.Remove("missing")

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len after purge = %d", c.Len())
	}
}

func TestZeroSizeStoresNothing(t *testing.T) {
	c := NewLRU[int, []byte](0)
	c.Put(1, []byte{1})
	if _, ok := c.Get(1); ok {
		t.Fatalf("zero sized cache returned a value")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewLRU[int, int](8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put(j%16, i)
				c.Get(j % 16)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 8 {
		t.Fatalf("len = %d exceeds capacity", c.Len())
	}
}
