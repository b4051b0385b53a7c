package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

var (
	ErrEmptySubject     = errors.New("subject is empty string")
	ErrNilIdentifier    = errors.New("schema identifier is nil")
	ErrUnsupportedValue = errors.New("unsupported value")
)

// A Serde reads and writes catalog records.
type Serde interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// A ProductSerde encodes [ProductV1] in the registry wire format:
// the magic byte, the schema id and the Avro payload.
type ProductSerde struct {
	schemaID int
	srSerde  *sr.Serde
}

var _ Serde = ProductSerde{}

// NewProductSerde registers [ProductSchemaTextV1] under subject
// and binds the returned id to [ProductV1].
func NewProductSerde(
	ctx context.Context, subject string, si SchemaIdentifier,
) (ProductSerde, error) {
	const op = "NewProductSerde"

	if subject == "" {
		return ProductSerde{}, fmt.Errorf("%s: %w", op, ErrEmptySubject)
	}
	if si == nil {
		return ProductSerde{}, fmt.Errorf("%s: %w", op, ErrNilIdentifier)
	}

	schemaID, err := si.DetermineID(ctx, subject, ProductSchemaTextV1)
	if err != nil {
		return ProductSerde{}, fmt.Errorf("%s: %w", op, err)
	}

	avroSchema := ProductV1Avro()
	srSerde := new(sr.Serde)
	srSerde.Register(
		schemaID,
		ProductV1{},
		sr.EncodeFn(func(v any) ([]byte, error) {
			return avro.Marshal(avroSchema, v)
		}),
		sr.DecodeFn(func(data []byte, v any) error {
			return avro.Unmarshal(avroSchema, data, v)
		}),
	)

	return ProductSerde{schemaID: schemaID, srSerde: srSerde}, nil
}

func (s ProductSerde) SchemaID() int {
	return s.schemaID
}

// Encode accepts [ProductV1] or a non-nil *[ProductV1].
func (s ProductSerde) Encode(v any) ([]byte, error) {
	const op = "ProductSerde.Encode"

	switch p := v.(type) {
	case ProductV1:
		return s.encode(p)
	case *ProductV1:
		if p != nil {
			return s.encode(*p)
		}
	}
	return nil, fmt.Errorf("%s: %w: %T", op, ErrUnsupportedValue, v)
}

func (s ProductSerde) encode(p ProductV1) ([]byte, error) {
	const op = "ProductSerde.Encode"

	b, err := s.srSerde.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("%s: product %q: %w", op, p.ProductID, err)
	}
	return b, nil
}

// Decode accepts *[ProductV1] only. Records written under another
// schema id are reported as [sr.ErrNotRegistered].
func (s ProductSerde) Decode(data []byte, v any) error {
	const op = "ProductSerde.Decode"

	if _, ok := v.(*ProductV1); !ok {
		return fmt.Errorf("%s: %w: %T", op, ErrUnsupportedValue, v)
	}
	if err := s.srSerde.Decode(data, v); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
