// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufcache

import "testing"

func TestCachePutGet(t *testing.T) {
	c := New[uint64, string](4, nil)
	if _, ok := c.Get(1); ok {
		t.Error("Get on empty cache = true, want false")
	}
	c.Set(1, "a")
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Errorf("Get(1) = %q, %v, want \"a\", true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheEvictsLRU(t *testing.T) {
	var evicted []uint64
	c := New[uint64, int](2, func(k uint64, _ int) {
		evicted = append(evicted, k)
	})
	c.Set(1, 10)
	c.Set(2, 20)
	c.Get(1) // 2 becomes least recently used
	c.Set(3, 30)

	if _, ok := c.Get(2); ok {
		t.Error("LRU entry survived eviction")
	}
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Errorf("evicted = %v, want [2]", evicted)
	}
	if _, ok := c.Get(1); !ok {
		t.Error("recently used entry evicted")
	}
}

func TestCacheSetExistingUpdates(t *testing.T) {
	c := New[uint64, int](2, nil)
	c.Set(1, 10)
	c.Set(1, 11)
	if v, _ := c.Get(1); v != 11 {
		t.Errorf("Get(1) = %d, want 11", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCachePurgeRunsEvictHook(t *testing.T) {
	var evicted int
	c := New[uint64, int](8, func(uint64, int) { evicted++ })
	c.Set(1, 10)
	c.Set(2, 20)
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after purge, want 0", c.Len())
	}
	if evicted != 2 {
		t.Errorf("evict hook ran %d times, want 2", evicted)
	}
}

func TestCacheDefaultCapacity(t *testing.T) {
	c := New[int, int](0, nil)
	if c.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", c.capacity, DefaultCapacity)
	}
}
