package pricing

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Product is a purchasable offering shown on the pricing page.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int    `json:"priceCents"`
	Currency    string `json:"currency"`
}

// Loader fetches the current product list from the billing provider.
type Loader interface {
	LoadProducts(ctx context.Context) ([]Product, error)
}

// Cache is a read-through cache over a Loader. Entries expire after the TTL and
// concurrent misses share a single load.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	products  []Product
	fetchedAt time.Time
	loaded    bool
	// gen advances on Invalidate; a load started under an older gen is discarded.
	gen uint64
}

// NewCache builds a cache. A nil clock uses time.Now.
func NewCache(loader Loader, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{loader: loader, ttl: ttl, now: now}
}

// Get returns the cached products, loading them when the cache is empty or stale.
// When a refresh of an expired entry fails the expired entry is served instead;
// the error only surfaces when there is nothing to fall back to.
func (c *Cache) Get(ctx context.Context) ([]Product, error) {
	c.mu.RLock()
	if c.loaded && c.now().Sub(c.fetchedAt) < c.ttl {
		products := c.products
		c.mu.RUnlock()
		return products, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		products, err := c.loader.LoadProducts(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.products = products
			c.fetchedAt = c.now()
			c.loaded = true
		}
		c.mu.Unlock()
		return products, nil
	})
	if err == nil {
		return v.([]Product), nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded {
		return c.products, nil
	}
	return nil, err
}

// Invalidate drops the cached entry so the next Get reloads. A load already in
// flight finishes for its own callers but is not cached.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = nil
	c.loaded = false
	c.gen++
}
