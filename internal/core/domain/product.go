package domain

import (
	"fmt"

	"github.com/niksmo/product-page/pkg/media"
	"github.com/shopspring/decimal"
)

// LookVariant tags an alternate "look" photo of a product.
const LookVariant = "LOOK"

type (
	Product struct {
		ProductID        string
		Title            string
		Price            decimal.Decimal
		TotalBenefit     decimal.Decimal
		ShippingPrograms []ShippingProgram
		Valid            bool
		SimilarIDs       []string
		BuyingOptions    []BuyingOption
		Images           *ProductImages
	}

	BuyingOption struct {
		OfferID    string
		MerchantID string
		Price      decimal.Decimal
	}

	// A ProductImages is nil when the catalog has no image metadata.
	ProductImages struct {
		Images []Image
	}

	// An Image with the empty Variant has no variant tag.
	Image struct {
		Variant string
		LowRes  *media.Descriptor
	}
)

func (p *Product) IsValid() bool {
	return p != nil && p.Valid
}

// FirstBuyingOption returns the winning buying option.
func (p Product) FirstBuyingOption() (BuyingOption, bool) {
	if len(p.BuyingOptions) == 0 {
		return BuyingOption{}, false
	}
	return p.BuyingOptions[0], true
}

// CheckPrices reports [ErrNegativePrice] for the product price
// or any of its buying option prices.
func (p Product) CheckPrices() error {
	if p.Price.IsNegative() {
		return fmt.Errorf("product %q: %w", p.ProductID, ErrNegativePrice)
	}
	for _, bo := range p.BuyingOptions {
		if bo.Price.IsNegative() {
			return fmt.Errorf("offer %q: %w", bo.OfferID, ErrNegativePrice)
		}
	}
	return nil
}

func (i Image) HasVariant(variant string) bool {
	return i.Variant != "" && i.Variant == variant
}
