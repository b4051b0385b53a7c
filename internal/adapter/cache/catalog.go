package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/port"
	gocache "github.com/patrickmn/go-cache"
)

var _ port.CatalogProvider = (*CatalogCache)(nil)

// A CatalogCache keeps products read from the underlying provider for ttl.
//
// Unknown products are not cached.
type CatalogCache struct {
	next  port.CatalogProvider
	items *gocache.Cache
}

func NewCatalogCache(next port.CatalogProvider, ttl time.Duration) CatalogCache {
	return CatalogCache{
		next:  next,
		items: gocache.New(ttl, 2*ttl),
	}
}

func (c CatalogCache) ReadProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	const op = "CatalogCache.ReadProduct"

	if p, ok := c.get(productID); ok {
		return *p, nil
	}

	p, err := c.next.ReadProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	c.items.SetDefault(productID, p)
	return p, nil
}

func (c CatalogCache) ReadProducts(
	ctx context.Context, ids []string,
) ([]*domain.Product, error) {
	const op = "CatalogCache.ReadProducts"
	log := slog.With("op", op)

	ps := make([]*domain.Product, len(ids))
	var (
		missIDs []string
		missIdx []int
	)
	for i, id := range ids {
		if p, ok := c.get(id); ok {
			ps[i] = p
			continue
		}
		missIDs = append(missIDs, id)
		missIdx = append(missIdx, i)
	}

	if len(missIDs) == 0 {
		return ps, nil
	}

	fetched, err := c.next.ReadProducts(ctx, missIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for j, p := range fetched {
		if j >= len(missIdx) {
			break
		}
		ps[missIdx[j]] = p
		if p != nil {
			c.items.SetDefault(missIDs[j], *p)
		}
	}
	log.Debug("cache miss", "requested", len(ids), "missed", len(missIDs))
	return ps, nil
}

func (c CatalogCache) get(productID string) (*domain.Product, bool) {
	v, ok := c.items.Get(productID)
	if !ok {
		return nil, false
	}
	p, ok := v.(domain.Product)
	if !ok {
		return nil, false
	}
	return &p, true
}
