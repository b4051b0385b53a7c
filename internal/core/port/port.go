package port

import (
	"context"
	"sync"

	"github.com/niksmo/product-page/internal/core/domain"
)

type (
	runnerContextWg interface {
		Run(context.Context, *sync.WaitGroup)
	}

	closer interface {
		Close()
	}
)

type SimilarQuery struct {
	SortBy      domain.SortBy
	PriceRange  domain.PriceRange
	PrimeOption domain.PrimeOption
}

type ProductsSender interface {
	SendProducts(context.Context, []domain.Product) error
}

type ProductsSaver interface {
	SaveProducts(context.Context, []domain.Product) error
}

type ProductPage interface {
	SimilarProducts(
		ctx context.Context, productID string, q SimilarQuery,
	) ([]*domain.Product, error)
	MainImageURL(
		ctx context.Context, productID string, longest int,
	) (string, bool, error)
	LookImageURL(
		ctx context.Context, productID string, longest int,
	) (string, bool, error)
	FirstBuyingOption(
		ctx context.Context, productID string,
	) (domain.BuyingOption, bool, error)
}

type ProductsProducer interface {
	ProduceProducts(context.Context, []domain.Product) error
}

type ProductsStorage interface {
	StoreProducts(context.Context, []domain.Product) error
}

// A CatalogProvider is the read side of the catalog.
//
// ReadProducts result is aligned with ids, unknown ids are nil entries.
type CatalogProvider interface {
	ReadProduct(ctx context.Context, productID string) (domain.Product, error)
	ReadProducts(ctx context.Context, ids []string) ([]*domain.Product, error)
}

type CatalogProcessor interface {
	runnerContextWg
	closer
}
