package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/lovoo/goka"
	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/niksmo/product-page/pkg/schema"
)

var _ port.CatalogProvider = (*CatalogView)(nil)

type viewGetter interface {
	Get(key string) (any, error)
}

// A CatalogViewConfig used for setup [CatalogView].
//
// TLSConfig is optional.
type CatalogViewConfig struct {
	SeedBrokers  []string
	Group        string
	ProductSerde Serde
	TLSConfig    *tls.Config
}

// A CatalogView reads the group table of [CatalogProcessor].
type CatalogView struct {
	gv          *goka.View
	getter      viewGetter
	waitRunning func() <-chan struct{}
}

func NewCatalogView(config CatalogViewConfig) (CatalogView, error) {
	const op = "NewCatalogView"

	applyTLS(config.TLSConfig)

	gv, err := goka.NewView(
		config.SeedBrokers,
		goka.GroupTable(goka.Group(config.Group)),
		newProductCodec(config.ProductSerde),
	)
	if err != nil {
		return CatalogView{}, opErr(err, op)
	}

	return CatalogView{gv: gv, getter: gv, waitRunning: gv.WaitRunning}, nil
}

func (v CatalogView) Run(ctx context.Context) {
	const op = "CatalogView.Run"
	log := slog.With("op", op)

	err := v.gv.Run(ctx)
	if err != nil {
		log.Error("unexpected fail on run", "err", err)
	}
}

// WaitRecovered blocks until the view has caught up with the group table.
// Reads before that may miss stored products.
func (v CatalogView) WaitRecovered(ctx context.Context) error {
	const op = "CatalogView.WaitRecovered"
	log := slog.With("op", op)

	log.Info("waiting for the catalog table recovery")
	select {
	case <-ctx.Done():
		return opErr(ctx.Err(), op)
	case <-v.waitRunning():
		log.Info("catalog table is recovered")
		return nil
	}
}

func (v CatalogView) ReadProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	const op = "CatalogView.ReadProduct"

	if err := ctx.Err(); err != nil {
		return domain.Product{}, opErr(err, op)
	}

	p, err := v.get(productID)
	if err != nil {
		return domain.Product{}, opErr(err, op)
	}
	if p == nil {
		return domain.Product{}, opErr(domain.ErrNotFound, op)
	}
	return *p, nil
}

func (v CatalogView) ReadProducts(
	ctx context.Context, ids []string,
) ([]*domain.Product, error) {
	const op = "CatalogView.ReadProducts"

	ps := make([]*domain.Product, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, opErr(err, op)
		}
		p, err := v.get(id)
		if err != nil {
			return nil, opErr(err, op)
		}
		ps[i] = p
	}
	return ps, nil
}

// get returns nil product for unknown key.
func (v CatalogView) get(productID string) (*domain.Product, error) {
	value, err := v.getter.Get(productID)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	s, ok := value.(schema.ProductV1)
	if !ok {
		return nil, fmt.Errorf(
			"%w: %T", ErrInvalidValueType, value,
		)
	}
	p := schemaV1ToProduct(s)
	return &p, nil
}
