package service

import (
	"context"
	"fmt"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/listing"
	"github.com/niksmo/product-page/internal/core/port"
)

var _ port.ProductsSender = (*Service)(nil)
var _ port.ProductsSaver = (*Service)(nil)
var _ port.ProductPage = (*Service)(nil)

type Service struct {
	productsProducer port.ProductsProducer
	productsStorage  port.ProductsStorage
	catalog          port.CatalogProvider
	ranker           listing.Ranker
	images           listing.ImageResolver
	lookVariant      string
}

type Opts struct {
	ProductsProducer port.ProductsProducer
	ProductsStorage  port.ProductsStorage
	Catalog          port.CatalogProvider
	ImageHost        string
	LookVariant      string
}

func New(opts Opts) Service {
	lookVariant := opts.LookVariant
	if lookVariant == "" {
		lookVariant = domain.LookVariant
	}
	return Service{
		productsProducer: opts.ProductsProducer,
		productsStorage:  opts.ProductsStorage,
		catalog:          opts.Catalog,
		ranker:           listing.NewRanker(),
		images:           listing.NewImageResolver(opts.ImageHost),
		lookVariant:      lookVariant,
	}
}

func (s Service) SendProducts(ctx context.Context, ps []domain.Product) error {
	const op = "Service.SendProducts"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.productsProducer.ProduceProducts(ctx, ps)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s Service) SaveProducts(ctx context.Context, ps []domain.Product) error {
	const op = "Service.SaveProducts"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.productsStorage.StoreProducts(ctx, ps)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SimilarProducts returns the ranked similar products of productID.
//
// Similar ids missing in the catalog are skipped.
func (s Service) SimilarProducts(
	ctx context.Context, productID string, q port.SimilarQuery,
) ([]*domain.Product, error) {
	const op = "Service.SimilarProducts"

	p, err := s.readProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var candidates []*domain.Product
	if len(p.SimilarIDs) != 0 {
		candidates, err = s.catalog.ReadProducts(ctx, p.SimilarIDs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	ranked := s.ranker.Rank(candidates, q.SortBy, q.PriceRange, q.PrimeOption)
	observeRank(q.SortBy, len(candidates), len(ranked))
	return ranked, nil
}

func (s Service) MainImageURL(
	ctx context.Context, productID string, longest int,
) (string, bool, error) {
	const op = "Service.MainImageURL"

	p, err := s.readProduct(ctx, productID)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	url, ok := s.images.ResolvePrimary(p.Images, longest)
	observeImage(imageKindMain, ok)
	return url, ok, nil
}

func (s Service) LookImageURL(
	ctx context.Context, productID string, longest int,
) (string, bool, error) {
	const op = "Service.LookImageURL"

	p, err := s.readProduct(ctx, productID)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	url, ok := s.images.ResolveVariant(p.Images, s.lookVariant, longest)
	observeImage(imageKindLook, ok)
	return url, ok, nil
}

func (s Service) FirstBuyingOption(
	ctx context.Context, productID string,
) (domain.BuyingOption, bool, error) {
	const op = "Service.FirstBuyingOption"

	p, err := s.readProduct(ctx, productID)
	if err != nil {
		return domain.BuyingOption{}, false, fmt.Errorf("%s: %w", op, err)
	}

	bo, ok := p.FirstBuyingOption()
	return bo, ok, nil
}

func (s Service) readProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	return s.catalog.ReadProduct(ctx, productID)
}
