package schema

import "github.com/hamba/avro/v2"

// Decimal amounts are carried as strings to keep their scale.
const ProductSchemaTextV1 = `{
	"type": "record",
	"namespace": "products",
	"name": "product",
	"fields": [
		{"name": "product_id", "type": "string"},
		{"name": "title", "type": "string"},
		{"name": "price", "type": "string"},
		{"name": "total_benefit", "type": "string"},
		{"name": "shipping_programs", "type": {"type": "array", "items": "string"}},
		{"name": "valid", "type": "boolean"},
		{"name": "similar_ids", "type": {"type": "array", "items": "string"}},
		{"name": "buying_options", "type": {"type": "array", "items": {
			"type": "record",
			"name": "buying_option",
			"fields": [
				{"name": "offer_id", "type": "string"},
				{"name": "merchant_id", "type": "string"},
				{"name": "price", "type": "string"}
			]
		}}},
		{"name": "images", "type": ["null", {
			"type": "record",
			"name": "product_images",
			"fields": [
				{"name": "images", "type": {"type": "array", "items": {
					"type": "record",
					"name": "image",
					"fields": [
						{"name": "variant", "type": "string"},
						{"name": "low_res", "type": ["null", {
							"type": "record",
							"name": "media",
							"fields": [
								{"name": "id", "type": "string"},
								{"name": "extension", "type": "string"},
								{"name": "width", "type": "int"},
								{"name": "height", "type": "int"}
							]
						}], "default": null}
					]
				}}}
			]
		}], "default": null}
	]
}`

type (
	ProductV1 struct {
		ProductID        string           `avro:"product_id"`
		Title            string           `avro:"title"`
		Price            string           `avro:"price"`
		TotalBenefit     string           `avro:"total_benefit"`
		ShippingPrograms []string         `avro:"shipping_programs"`
		Valid            bool             `avro:"valid"`
		SimilarIDs       []string         `avro:"similar_ids"`
		BuyingOptions    []BuyingOptionV1 `avro:"buying_options"`
		Images           *ProductImagesV1 `avro:"images"`
	}

	BuyingOptionV1 struct {
		OfferID    string `avro:"offer_id"`
		MerchantID string `avro:"merchant_id"`
		Price      string `avro:"price"`
	}

	ProductImagesV1 struct {
		Images []ImageV1 `avro:"images"`
	}

	ImageV1 struct {
		Variant string   `avro:"variant"`
		LowRes  *MediaV1 `avro:"low_res"`
	}

	MediaV1 struct {
		ID        string `avro:"id"`
		Extension string `avro:"extension"`
		Width     int    `avro:"width"`
		Height    int    `avro:"height"`
	}
)

// ProductV1Avro panics on invalid [ProductSchemaTextV1].
func ProductV1Avro() avro.Schema {
	return avro.MustParse(ProductSchemaTextV1)
}
