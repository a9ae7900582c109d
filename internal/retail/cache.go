package retail

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is how long a result set stays fresh.
const DefaultCacheTTL = 15 * time.Minute

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retail_cache_lookups_total",
		Help: "Retailer result cache lookups by backend and result (hit, miss).",
	},
	[]string{"backend", "result"},
)

func init() {
	prometheus.MustRegister(cacheLookups)
}

// Cache stores full result sets per search key. Implementations hand out
// copies, so callers may modify what they get back.
type Cache interface {
	Get(ctx context.Context, key string) ([]Product, bool)
	Set(ctx context.Context, key string, products []Product)
}

// CacheKey builds the cache key for a (query, year, make, model) tuple.
// Case and surrounding whitespace do not matter.
func CacheKey(tool string, p SearchParams) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return strings.Join([]string{
		tool, norm(p.Query), strconv.Itoa(p.Year), norm(p.Make), norm(p.Model),
	}, "|")
}

type memEntry struct {
	products []Product
	expires  time.Time
}

// MemoryCache is a process-local TTL cache capped at max entries. Expired
// entries are reclaimed on every write; when the cap is still reached the
// entry closest to expiry is evicted.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewMemoryCache returns a MemoryCache. Non-positive ttl or max fall back to
// DefaultCacheTTL and 256.
func NewMemoryCache(ttl time.Duration, max int) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if max <= 0 {
		max = 256
	}
	return &MemoryCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		cacheLookups.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues("memory", "hit").Inc()
	return cloneProducts(e.products), true
}

func (c *MemoryCache) Set(_ context.Context, key string, products []Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		var victim string
		var soonest time.Time
		for k, e := range c.entries {
			if victim == "" || e.expires.Before(soonest) {
				victim, soonest = k, e.expires
			}
		}
		delete(c.entries, victim)
	}
	c.entries[key] = memEntry{products: cloneProducts(products), expires: now.Add(c.ttl)}
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares result sets between instances. Redis errors degrade to a
// cache miss and are logged.
type RedisCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisCache wraps a go-redis client. Keys are namespaced under "retail:".
func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "retail:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Product, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("retail cache get failed")
		}
		cacheLookups.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	var out []Product
	if err := json.Unmarshal(raw, &out); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("retail cache entry corrupt")
		cacheLookups.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues("redis", "hit").Inc()
	return out, true
}

func (c *RedisCache) Set(ctx context.Context, key string, products []Product) {
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("retail cache set failed")
	}
}
