package retail

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestCacheKey_Normalizes(t *testing.T) {
	a := CacheKey("t", SearchParams{Query: " Battery ", Year: 2019, Make: "Honda", Model: "CBR650F"})
	b := CacheKey("t", SearchParams{Query: "battery", Year: 2019, Make: "honda", Model: "cbr650f "})
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	c := CacheKey("t", SearchParams{Query: "battery", Year: 2020, Make: "Honda", Model: "CBR650F"})
	if a == c {
		t.Fatalf("year must be part of the key")
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(time.Minute, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.Set(ctx, "k", []Product{{Name: "x"}})
	if got, ok := c.Get(ctx, "k"); !ok || got[0].Name != "x" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("entry should be expired at exactly ttl")
	}
}

func TestMemoryCache_EvictsExpiredOnWrite(t *testing.T) {
	c := NewMemoryCache(time.Minute, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		c.Set(ctx, k, nil)
	}
	now = now.Add(2 * time.Minute)
	c.Set(ctx, "d", nil)
	if c.Len() != 1 {
		t.Fatalf("expired entries not reclaimed, len=%d", c.Len())
	}
}

func TestMemoryCache_SizeCap(t *testing.T) {
	c := NewMemoryCache(time.Hour, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "old", []Product{{Name: "old"}})
	now = now.Add(time.Second)
	c.Set(ctx, "mid", []Product{{Name: "mid"}})
	now = now.Add(time.Second)
	c.Set(ctx, "new", []Product{{Name: "new"}})

	if c.Len() != 2 {
		t.Fatalf("len=%d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "old"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if _, ok := c.Get(ctx, "new"); !ok {
		t.Fatalf("newest entry missing")
	}

	// Overwriting an existing key never evicts another one.
	c.Set(ctx, "mid", []Product{{Name: "mid2"}})
	if _, ok := c.Get(ctx, "new"); !ok || c.Len() != 2 {
		t.Fatalf("overwrite evicted a neighbour")
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(time.Hour, 4)
	ctx := context.Background()
	price := 99.5
	in := []Product{{Name: "Battery", Price: &price}}
	c.Set(ctx, "k", in)

	in[0].Name = "mutated"
	*in[0].Price = 1

	got, _ := c.Get(ctx, "k")
	if got[0].Name != "Battery" || *got[0].Price != 99.5 {
		t.Fatalf("cache entry shared memory with caller: %+v", got[0])
	}
	got[0].Name = "again"
	again, _ := c.Get(ctx, "k")
	if again[0].Name != "Battery" {
		t.Fatalf("cache entry mutated through Get result")
	}
}

func TestRedisCache_ErrorsDegradeToMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()
	c.Set(ctx, "k", []Product{{Name: "x"}})
	if got, ok := c.Get(ctx, "k"); ok || got != nil {
		t.Fatalf("unreachable redis must be a miss, got %v %v", got, ok)
	}
}
