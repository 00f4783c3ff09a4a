package catalog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/answerforge/answerd/internal/logging"
)

// Cache holds the product catalog in memory and refreshes it from the
// source when the TTL expires.
//
// Concurrent refresh attempts collapse into a single in-flight fetch via
// singleflight: the first caller triggers the fetch and every concurrent
// caller awaits the same result. Callers are never blocked on a refresh
// once an initial snapshot exists; a stale snapshot is served while the
// refresh runs in the background.
type Cache struct {
	source Source
	ttl    time.Duration
	logger *logging.Logger

	mu        sync.RWMutex
	products  []Product
	fetchedAt time.Time
	loaded    bool

	group singleflight.Group
}

// NewCache creates a catalog cache. ttl controls how long a fetched
// catalog stays fresh.
func NewCache(source Source, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// Products returns the current catalog snapshot.
//
// The first call fetches synchronously. Afterwards a fresh snapshot is
// returned directly; an expired one is returned as-is while a background
// refresh runs. A failed initial fetch yields an empty catalog rather
// than an error, so resolution degrades to "no products detected"
// instead of blocking the query.
func (c *Cache) Products(ctx context.Context) []Product {
	c.mu.RLock()
	products, fetchedAt, loaded := c.products, c.fetchedAt, c.loaded
	c.mu.RUnlock()

	if loaded {
		if time.Since(fetchedAt) > c.ttl {
			go c.refresh(context.WithoutCancel(ctx))
		}
		return products
	}

	// First load: fetch synchronously, collapsed across callers.
	c.refresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products
}

// refresh fetches the catalog through singleflight so duplicate refresh
// requests await the same pending fetch.
func (c *Cache) refresh(ctx context.Context) {
	_, err, _ := c.group.Do("catalog", func() (any, error) {
		products, err := c.source.FetchProducts(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.products = products
		c.fetchedAt = time.Now()
		c.loaded = true
		c.mu.Unlock()

		return nil, nil
	})
	if err != nil {
		c.logger.Warn(ctx, "catalog refresh failed", zap.Error(err))
	}
}

// Len returns the number of products in the current snapshot.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}
