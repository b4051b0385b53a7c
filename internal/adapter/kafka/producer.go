package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.ProductsProducer = (*ProductsProducer)(nil)

// A ProductsProducer publishes [domain.Product] to the catalog stream.
//
// Records are keyed by product id, so every version of a product lands
// in one partition and the latest record wins in the compacted table.
type ProductsProducer struct {
	cl      ProducerClient
	encoder Encoder
}

func NewProductsProducer(opts ...ProducerOpt) (ProductsProducer, error) {
	const op = "NewProductsProducer"

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return ProductsProducer{}, opErr(err, op)
		}
	}

	if options.cl == nil || options.encoder == nil {
		if options.cl != nil {
			options.cl.Close()
		}
		return ProductsProducer{}, opErr(ErrTooFewOpts, op)
	}

	return ProductsProducer{cl: options.cl, encoder: options.encoder}, nil
}

func (p ProductsProducer) Close() {
	const op = "ProductsProducer.Close"
	log := slog.With("op", op)

	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

// ProduceProducts fails as a whole when any product cannot be encoded.
// Broker failures are reported per product id.
func (p ProductsProducer) ProduceProducts(
	ctx context.Context, vs []domain.Product,
) error {
	const op = "ProductsProducer.ProduceProducts"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return opErr(err, op)
	}

	if len(vs) == 0 {
		return nil
	}

	rs := make([]*kgo.Record, 0, len(vs))
	for _, v := range vs {
		b, err := p.encoder.Encode(productToSchemaV1(v))
		if err != nil {
			return opErr(fmt.Errorf("product %q: %w", v.ProductID, err), op)
		}
		rs = append(rs, &kgo.Record{Key: []byte(v.ProductID), Value: b})
	}

	if err := producedErr(p.cl.ProduceSync(ctx, rs...)); err != nil {
		return opErr(err, op)
	}

	log.Debug("products produced", "nProducts", len(rs))
	return nil
}

func producedErr(results kgo.ProduceResults) error {
	var errs []error
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		if res.Record == nil {
			errs = append(errs, res.Err)
			continue
		}
		errs = append(errs, fmt.Errorf(
			"product %q: %w", string(res.Record.Key), res.Err,
		))
	}
	return errors.Join(errs...)
}
