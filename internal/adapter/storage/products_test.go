package storage

import (
	"testing"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/pkg/media"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductsRepositoryDocs(t *testing.T) {
	r := NewProductsRepository(nil)

	t.Run("RoundTrip", func(t *testing.T) {
		v := domain.Product{
			BuyingOptions: []domain.BuyingOption{
				{OfferID: "o1", MerchantID: "m1", Price: decimal.RequireFromString("9.99")},
			},
			Images: &domain.ProductImages{Images: []domain.Image{
				{LowRes: &media.Descriptor{ID: "main", Extension: "jpg", Width: 2, Height: 1}},
				{Variant: domain.LookVariant},
			}},
		}

		bos, imgs, err := r.marshalDocs(v)
		require.NoError(t, err)

		var got domain.Product
		require.NoError(t, r.unmarshalDocs(&got, bos, imgs))

		require.Len(t, got.BuyingOptions, 1)
		assert.Equal(t, "o1", got.BuyingOptions[0].OfferID)
		assert.True(t, got.BuyingOptions[0].Price.Equal(v.BuyingOptions[0].Price))
		assert.Equal(t, v.Images, got.Images)
	})

	t.Run("NoImagesStaysNil", func(t *testing.T) {
		bos, imgs, err := r.marshalDocs(domain.Product{})
		require.NoError(t, err)
		assert.Nil(t, imgs)
		assert.JSONEq(t, `[]`, string(bos))

		var got domain.Product
		require.NoError(t, r.unmarshalDocs(&got, bos, imgs))
		assert.Nil(t, got.Images)
		assert.Empty(t, got.BuyingOptions)
	})

	t.Run("MalformedDoc", func(t *testing.T) {
		var got domain.Product
		err := r.unmarshalDocs(&got, []byte(`{`), nil)
		assert.Error(t, err)
	})
}

func TestNonNil(t *testing.T) {
	assert.NotNil(t, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}
