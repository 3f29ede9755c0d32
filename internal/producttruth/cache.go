// Package producttruth serves product state to the cart from a shared cache,
// falling back to the catalog service on a miss.
package producttruth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fjod/go_cart/cartsync/internal/cache"
	"github.com/fjod/go_cart/cartsync/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "product:"

type CatalogClient interface {
	GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
}

type Cache struct {
	store   cache.Store
	catalog CatalogClient
	ttl     time.Duration
	jitter  time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
	sfg     singleflight.Group // Prevents cache stampede

	// gens counts invalidations per product. A load only caches its result
	// if no invalidation happened while it ran.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewCache(store cache.Store, catalog CatalogClient, ttl, jitter time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		store:   store,
		catalog: catalog,
		ttl:     ttl,
		jitter:  jitter,
		logger:  logger,
		tracer:  otel.Tracer("github.com/fjod/go_cart/cartsync/internal/producttruth"),
		gens:    make(map[string]uint64),
	}
}

// ResolveProduct returns the cached snapshot, or loads it from the catalog and
// caches it. A hit is trusted as is. Errors are domain.ErrProductNotFound or
// wrap domain.ErrUpstreamUnavailable.
func (c *Cache) ResolveProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "producttruth.ResolveProduct",
		trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	if p, ok := c.lookup(ctx, productID); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return p, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The shared load outlives any single caller; the catalog client's own
	// timeout bounds it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(productID, func() (interface{}, error) {
		return c.load(loadCtx, productID)
	})

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "canceled")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return nil, res.Err
		}
		return res.Val.(*domain.ProductSnapshot), nil
	}
}

// Invalidate drops the cached snapshot so the next read goes to the catalog.
// Reads that arrive afterwards never join a load that started before it.
func (c *Cache) Invalidate(ctx context.Context, productID string) error {
	c.mu.Lock()
	c.gens[productID]++
	c.mu.Unlock()
	c.sfg.Forget(productID)

	if err := c.store.Delete(ctx, cacheKey(productID)); err != nil {
		return fmt.Errorf("invalidate product %s: %w", productID, err)
	}
	return nil
}

func (c *Cache) lookup(ctx context.Context, productID string) (*domain.ProductSnapshot, bool) {
	data, err := c.store.Get(ctx, cacheKey(productID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("product cache get failed", zap.String("product_id", productID), zap.Error(err))
		}
		return nil, false
	}

	var p domain.ProductSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("cached product is corrupt", zap.String("product_id", productID), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (c *Cache) generation(productID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[productID]
}

func (c *Cache) load(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	gen := c.generation(productID)
	p, err := c.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("encode product for cache failed", zap.String("product_id", productID), zap.Error(err))
		return p, nil
	}
	if c.generation(productID) != gen {
		c.logger.Debug("product invalidated during load, not caching", zap.String("product_id", productID))
		return p, nil
	}
	if err := c.store.SetWithTTL(ctx, cacheKey(productID), data, c.entryTTL()); err != nil {
		c.logger.Warn("product cache set failed", zap.String("product_id", productID), zap.Error(err))
	}
	return p, nil
}

func (c *Cache) entryTTL() time.Duration {
	if c.jitter <= 0 {
		return c.ttl
	}
	return c.ttl + rand.N(c.jitter)
}

func cacheKey(productID string) string {
	return keyPrefix + productID
}
