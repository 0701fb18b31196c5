package sync

import "testing"

func TestCVRCachePutGet(t *testing.T) {
	cache := newCVRCache(10)
	cvr := CVR{entityList: CVREntries{"l1": 1}}

	cache.put("cvr-1", cvr)

	got, ok := cache.get("cvr-1")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got[entityList]["l1"] != 1 {
		t.Fatalf("unexpected cached value: %#v", got)
	}
}

func TestCVRCacheMiss(t *testing.T) {
	cache := newCVRCache(10)
	if _, ok := cache.get("unknown"); ok {
		t.Fatalf("expected cache miss")
	}
}

func TestCVRCacheEvictsOldestBeyondCapacity(t *testing.T) {
	cache := newCVRCache(2)
	cache.put("first", CVR{})
	cache.put("second", CVR{})
	cache.put("third", CVR{})

	if cache.len() != 2 {
		t.Fatalf("expected capacity bound of 2, got %d entries", cache.len())
	}
	if _, ok := cache.get("first"); ok {
		t.Fatalf("oldest entry should be evicted")
	}
	if _, ok := cache.get("second"); !ok {
		t.Fatalf("second entry should survive")
	}
	if _, ok := cache.get("third"); !ok {
		t.Fatalf("newest entry should survive")
	}
}
