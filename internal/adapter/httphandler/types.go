package httphandler

type (
	Product struct {
		ProductID        string         `json:"product_id" validate:"required"`
		Title            string         `json:"title"`
		Price            string         `json:"price" validate:"required,numeric"`
		TotalBenefit     string         `json:"total_benefit" validate:"omitempty,numeric"`
		ShippingPrograms []string       `json:"shipping_programs"`
		Valid            bool           `json:"valid"`
		SimilarIDs       []string       `json:"similar_ids" validate:"dive,required"`
		BuyingOptions    []BuyingOption `json:"buying_options" validate:"dive"`
		Images           *ProductImages `json:"images,omitempty"`
	}

	BuyingOption struct {
		OfferID    string `json:"offer_id" validate:"required"`
		MerchantID string `json:"merchant_id"`
		Price      string `json:"price" validate:"required,numeric"`
	}

	ProductImages struct {
		Images []Image `json:"images" validate:"dive"`
	}

	Image struct {
		Variant string `json:"variant"`
		LowRes  *Media `json:"low_res,omitempty"`
	}

	Media struct {
		ID        string `json:"id"`
		Extension string `json:"extension"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	}
)

// Listing entry of the similar products response.
type SimilarProduct struct {
	ProductID        string   `json:"product_id"`
	Title            string   `json:"title"`
	Price            string   `json:"price"`
	TotalBenefit     string   `json:"total_benefit"`
	ShippingPrograms []string `json:"shipping_programs"`
}

type SimilarParams struct {
	// Unknown sort keys keep the catalog order.
	SortBy     string
	PriceRange string `validate:"omitempty,oneof=ALL UNDER_25 25_TO_50 50_TO_100 100_TO_200 200_AND_ABOVE"`
	Prime      string `validate:"omitempty,oneof=ALL PRIME PRIMENOW NONPRIME"`
}

type ImageParams struct {
	Longest int `validate:"gte=1,lte=10000"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type BuyingOptionResponse struct {
	OfferID    string `json:"offer_id"`
	MerchantID string `json:"merchant_id"`
	Price      string `json:"price"`
}
