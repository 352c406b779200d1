package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type ProductReader interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

// CachedProducts serves product lookups cache-aside from Redis. Concurrent
// misses for the same id share one database read. Redis failures degrade to
// direct reads.
type CachedProducts struct {
	next   ProductReader
	client redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger

	mu sync.Mutex
	// generations counts invalidations per id; a load only writes back when
	// no invalidation happened while it was reading.
	generations map[string]uint64
}

func NewCachedProducts(next ProductReader, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedProducts {
	return &CachedProducts{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,

		generations: make(map[string]uint64),
	}
}

func productKey(id string) string {
	return "product:" + id
}

func (c *CachedProducts) Get(ctx context.Context, id string) (*domain.Product, error) {
	if product, ok := c.lookup(ctx, id); ok {
		return product, nil
	}

	// The flight is shared, so it must outlive the caller that started it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(id, func() (any, error) {
		if product, ok := c.lookup(loadCtx, id); ok {
			return product, nil
		}

		generation := c.generation(id)
		product, err := c.next.Get(loadCtx, id)
		if err != nil || product == nil {
			return product, err
		}

		c.storeIfCurrent(loadCtx, product, generation)
		return product, nil
	})
	if err != nil {
		return nil, err
	}

	product, _ := v.(*domain.Product)
	if product == nil {
		return nil, nil
	}
	// callers sharing a flight must not alias each other's result
	clone := *product
	return &clone, nil
}

// Invalidate drops the cached copy of a product.
func (c *CachedProducts) Invalidate(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[id]++
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		c.logger.Warn("failed to invalidate cached product", "error", err, "product_id", id)
	}
}

func (c *CachedProducts) generation(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[id]
}

// storeIfCurrent writes product back unless it was invalidated after the
// read that produced it began. Holding mu orders the write against Invalidate.
func (c *CachedProducts) storeIfCurrent(ctx context.Context, product *domain.Product, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[product.ID] != generation {
		return
	}
	c.store(ctx, product)
}

func (c *CachedProducts) lookup(ctx context.Context, id string) (*domain.Product, bool) {
	payload, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("product cache read failed", "error", err, "product_id", id)
		return nil, false
	}

	var product domain.Product
	if err := json.Unmarshal(payload, &product); err != nil {
		c.logger.Warn("discarding corrupt cached product", "error", err, "product_id", id)
		return nil, false
	}
	return &product, true
}

func (c *CachedProducts) store(ctx context.Context, product *domain.Product) {
	payload, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn("failed to encode product for cache", "error", err, "product_id", product.ID)
		return
	}
	if err := c.client.Set(ctx, productKey(product.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("product cache write failed", "error", err, "product_id", product.ID)
	}
}
