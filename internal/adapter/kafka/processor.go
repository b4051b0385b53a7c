package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sync"

	"github.com/lovoo/goka"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/niksmo/product-page/pkg/schema"
)

var _ port.CatalogProcessor = (*CatalogProcessor)(nil)

// A processor is used for composition.
//
// Running and closing the underlying [goka.Processor]
type processor struct {
	opPrefix string
	gp       *goka.Processor
}

func (p *processor) run(ctx context.Context, wg *sync.WaitGroup) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer wg.Done()

	go p.runProc(ctx)

	log.Info("preparing...")
	p.waitForReady(ctx)
	log.Info("running")
}

func (p *processor) runProc(ctx context.Context) {
	const op = "runProc"
	log := slog.With("op", makeOp(p.opPrefix, op))

	err := p.gp.Run(ctx)
	if err != nil {
		log.Error("stopped", "err", err)
		return
	}
	log.Info("stopped")
}

func (p *processor) waitForReady(ctx context.Context) {
	const op = "waitForReady"
	log := slog.With("op", makeOp(p.opPrefix, op))

	err := p.gp.WaitForReadyContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("fall down while preparing", "err", err)
		return
	}
}

func (p *processor) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))

	log.Info("closing processor...")
	p.gp.Stop()
	log.Info("processor is closed")
}

// A productCodec used for serde [schema.ProductV1]
type productCodec struct {
	serde Serde
}

func newProductCodec(s Serde) productCodec {
	return productCodec{s}
}

func (c productCodec) Encode(v any) ([]byte, error) {
	const op = "productCodec.Encode"
	if _, ok := v.(schema.ProductV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c productCodec) Decode(data []byte) (any, error) {
	const op = "productCodec.Decode"
	var s schema.ProductV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// A CatalogProcessorConfig used for setup [CatalogProcessor].
//
// TLSConfig is optional.
type CatalogProcessorConfig struct {
	SeedBrokers  []string
	InputStream  string
	Group        string
	ProductSerde Serde
	TLSConfig    *tls.Config
}

// A CatalogProcessor materializes the catalog stream
// into the group table keyed by product id.
//
// The latest record of a product replaces the previous one.
type CatalogProcessor struct {
	processor *processor
}

func NewCatalogProcessor(
	config CatalogProcessorConfig,
) (CatalogProcessor, error) {
	const op = "NewCatalogProcessor"

	applyTLS(config.TLSConfig)

	codec := newProductCodec(config.ProductSerde)

	var p CatalogProcessor
	gg := goka.DefineGroup(goka.Group(config.Group),
		goka.Input(goka.Stream(config.InputStream), codec, p.processFn),
		goka.Persist(codec),
	)

	gp, err := goka.NewProcessor(config.SeedBrokers, gg, withNoLogProcOpt())
	if err != nil {
		return CatalogProcessor{}, opErr(err, op)
	}

	p.processor = &processor{opPrefix: "CatalogProcessor", gp: gp}
	return p, nil
}

// Run blocks until the processor is recovered and ready.
func (p CatalogProcessor) Run(ctx context.Context, wg *sync.WaitGroup) {
	p.processor.run(ctx, wg)
}

func (p CatalogProcessor) Close() {
	p.processor.close()
}

func (CatalogProcessor) processFn(ctx goka.Context, msg any) {
	const op = "CatalogProcessor.processFn"
	log := slog.With("op", op)

	v, ok := msg.(schema.ProductV1)
	if !ok {
		log.Error("unexpected message", "err", ErrInvalidValueType)
		return
	}

	if v.ProductID != ctx.Key() {
		log.Warn(
			"record key mismatch",
			"key", ctx.Key(),
			"productID", v.ProductID,
		)
	}

	ctx.SetValue(v)
	log.Debug("product stored", "productID", v.ProductID, "valid", v.Valid)
}
