package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/niksmo/product-page/internal/core/service"
	"github.com/niksmo/product-page/pkg/media"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ReadProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockCatalog) ReadProducts(
	ctx context.Context, ids []string,
) ([]*domain.Product, error) {
	args := m.Called(ctx, ids)
	ps, _ := args.Get(0).([]*domain.Product)
	return ps, args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) ProduceProducts(ctx context.Context, ps []domain.Product) error {
	return m.Called(ctx, ps).Error(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) StoreProducts(ctx context.Context, ps []domain.Product) error {
	return m.Called(ctx, ps).Error(0)
}

func similar(id string, price int64, programs ...domain.ShippingProgram) *domain.Product {
	return &domain.Product{
		ProductID:        id,
		Price:            decimal.NewFromInt(price),
		ShippingPrograms: programs,
		Valid:            true,
	}
}

func TestServiceSimilarProducts(t *testing.T) {
	t.Run("RankMatching", func(t *testing.T) {
		catalog := new(MockCatalog)
		s := service.New(service.Opts{Catalog: catalog})

		p := domain.Product{ProductID: "root", SimilarIDs: []string{"a", "missing", "b", "c"}}
		catalog.On("ReadProduct", mock.Anything, "root").Return(p, nil)
		catalog.On("ReadProducts", mock.Anything, p.SimilarIDs).Return(
			[]*domain.Product{
				similar("a", 30, domain.ShippingPrime),
				nil,
				similar("b", 10, domain.ShippingNonPrime),
				similar("c", 20, domain.ShippingPrimeNow, domain.ShippingPrime),
			}, nil,
		)

		res, err := s.SimilarProducts(t.Context(), "root", port.SimilarQuery{
			SortBy:      domain.SortPriceLowToHigh,
			PriceRange:  domain.PriceAny,
			PrimeOption: domain.PrimeOptionPrime,
		})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "c", res[0].ProductID)
		assert.Equal(t, "a", res[1].ProductID)
		catalog.AssertExpectations(t)
	})

	t.Run("NoSimilarIDs", func(t *testing.T) {
		catalog := new(MockCatalog)
		s := service.New(service.Opts{Catalog: catalog})
		catalog.On("ReadProduct", mock.Anything, "lonely").
			Return(domain.Product{ProductID: "lonely"}, nil)

		res, err := s.SimilarProducts(t.Context(), "lonely", port.SimilarQuery{})
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Empty(t, res)
		catalog.AssertNotCalled(t, "ReadProducts", mock.Anything, mock.Anything)
	})

	t.Run("ProductNotFound", func(t *testing.T) {
		catalog := new(MockCatalog)
		s := service.New(service.Opts{Catalog: catalog})
		catalog.On("ReadProduct", mock.Anything, "nope").
			Return(domain.Product{}, domain.ErrNotFound)

		_, err := s.SimilarProducts(t.Context(), "nope", port.SimilarQuery{})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ReadSimilarFailed", func(t *testing.T) {
		catalog := new(MockCatalog)
		s := service.New(service.Opts{Catalog: catalog})
		errUnavailable := errors.New("unavailable")
		p := domain.Product{ProductID: "root", SimilarIDs: []string{"a"}}
		catalog.On("ReadProduct", mock.Anything, "root").Return(p, nil)
		catalog.On("ReadProducts", mock.Anything, p.SimilarIDs).Return(nil, errUnavailable)

		_, err := s.SimilarProducts(t.Context(), "root", port.SimilarQuery{})
		assert.ErrorIs(t, err, errUnavailable)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		catalog := new(MockCatalog)
		s := service.New(service.Opts{Catalog: catalog})
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := s.SimilarProducts(ctx, "root", port.SimilarQuery{})
		assert.ErrorIs(t, err, context.Canceled)
		catalog.AssertNotCalled(t, "ReadProduct", mock.Anything, mock.Anything)
	})
}

func TestServiceImages(t *testing.T) {
	mainMedia := &media.Descriptor{ID: "main", Extension: "jpg", Width: 200, Height: 200}
	lookMedia := &media.Descriptor{ID: "look", Extension: "jpg", Width: 100, Height: 200}

	catalog := new(MockCatalog)
	catalog.On("ReadProduct", mock.Anything, "withImages").Return(domain.Product{
		ProductID: "withImages",
		Images: &domain.ProductImages{Images: []domain.Image{
			{LowRes: mainMedia},
			{Variant: domain.LookVariant, LowRes: lookMedia},
		}},
	}, nil)
	catalog.On("ReadProduct", mock.Anything, "noImages").
		Return(domain.Product{ProductID: "noImages"}, nil)

	s := service.New(service.Opts{Catalog: catalog, ImageHost: "http://cdn.local"})

	t.Run("Main", func(t *testing.T) {
		url, ok, err := s.MainImageURL(t.Context(), "withImages", 120)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "http://cdn.local/main._SL120_.jpg", url)
	})

	t.Run("Look", func(t *testing.T) {
		url, ok, err := s.LookImageURL(t.Context(), "withImages", 120)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "http://cdn.local/look._SL120_.jpg", url)
	})

	t.Run("Absent", func(t *testing.T) {
		_, ok, err := s.MainImageURL(t.Context(), "noImages", 120)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.LookImageURL(t.Context(), "noImages", 120)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CustomLookVariant", func(t *testing.T) {
		s := service.New(service.Opts{Catalog: catalog, LookVariant: "SWATCH"})
		_, ok, err := s.LookImageURL(t.Context(), "withImages", 120)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestServiceFirstBuyingOption(t *testing.T) {
	catalog := new(MockCatalog)
	catalog.On("ReadProduct", mock.Anything, "offers").Return(domain.Product{
		BuyingOptions: []domain.BuyingOption{{OfferID: "o1"}, {OfferID: "o2"}},
	}, nil)
	catalog.On("ReadProduct", mock.Anything, "noOffers").Return(domain.Product{}, nil)
	s := service.New(service.Opts{Catalog: catalog})

	bo, ok, err := s.FirstBuyingOption(t.Context(), "offers")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "o1", bo.OfferID)

	_, ok, err = s.FirstBuyingOption(t.Context(), "noOffers")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceSendAndSave(t *testing.T) {
	ps := []domain.Product{{ProductID: "p1"}}

	t.Run("Send", func(t *testing.T) {
		producer := new(MockProducer)
		producer.On("ProduceProducts", mock.Anything, ps).Return(nil)
		s := service.New(service.Opts{ProductsProducer: producer})

		require.NoError(t, s.SendProducts(t.Context(), ps))
		producer.AssertExpectations(t)
	})

	t.Run("SendFailed", func(t *testing.T) {
		errBroker := errors.New("broker down")
		producer := new(MockProducer)
		producer.On("ProduceProducts", mock.Anything, ps).Return(errBroker)
		s := service.New(service.Opts{ProductsProducer: producer})

		err := s.SendProducts(t.Context(), ps)
		assert.ErrorIs(t, err, errBroker)
	})

	t.Run("Save", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("StoreProducts", mock.Anything, ps).Return(nil)
		s := service.New(service.Opts{ProductsStorage: storage})

		require.NoError(t, s.SaveProducts(t.Context(), ps))
		storage.AssertExpectations(t)
	})
}
