package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/lovoo/goka"
	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/pkg/media"
	"github.com/niksmo/product-page/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	ErrTooFewOpts       = errors.New("too few options")
	ErrInvalidValueType = errors.New("invalid value type")
)

type ProducerOpt func(*producerOpts) error

type producerOpts struct {
	cl      ProducerClient
	encoder Encoder
}

// ProducerClientOpt creates [kgo.Client] and pings the cluster.
//
// The nil tlsConfig is a plaintext connection.
func ProducerClientOpt(
	ctx context.Context, seedBrokers []string, topic string, tlsConfig *tls.Config,
) ProducerOpt {
	return func(opts *producerOpts) error {
		cl, err := newProducerClient(ctx, seedBrokers, topic, tlsConfig)
		if err != nil {
			return err
		}
		opts.cl = cl
		return nil
	}
}

// ProducerExistingClientOpt sets already created client.
func ProducerExistingClientOpt(cl ProducerClient) ProducerOpt {
	return func(opts *producerOpts) error {
		if cl == nil {
			return errors.New("producer client is nil")
		}
		opts.cl = cl
		return nil
	}
}

func newProducerClient(
	ctx context.Context, seedBrokers []string, topic string, tlsConfig *tls.Config,
) (*kgo.Client, error) {
	kgoOpts := []kgo.Opt{
		kgo.SeedBrokers(seedBrokers...),
		kgo.DefaultProduceTopicAlways(),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	}
	if tlsConfig != nil {
		kgoOpts = append(kgoOpts, kgo.DialTLSConfig(tlsConfig))
	}

	cl, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, err
	}

	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, err
	}
	return cl, nil
}

func ProducerEncoderOpt(encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) error {
		if encoder == nil {
			return errors.New("encoder is nil")
		}
		opts.encoder = encoder
		return nil
	}
}

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// A ConsumerClient blocks rebalances from a poll until AllowRebalance.
type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	CommitUncommittedOffsets(context.Context) error
	AllowRebalance()
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type Serde interface {
	Encoder
	Decoder
}

func withNoLogProcOpt() goka.ProcessorOption {
	return goka.WithLogger(log.New(io.Discard, "", 0))
}

// applyTLS replaces the goka global config,
// so it must be called before any goka processor or view is created.
func applyTLS(tlsConfig *tls.Config) {
	if tlsConfig == nil {
		return
	}
	cfg := goka.DefaultConfig()
	cfg.Net.TLS.Enable = true
	cfg.Net.TLS.Config = tlsConfig
	goka.ReplaceGlobalConfig(cfg)
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

func productToSchemaV1(v domain.Product) (s schema.ProductV1) {
	s.ProductID = v.ProductID
	s.Title = v.Title
	s.Price = v.Price.String()
	s.TotalBenefit = v.TotalBenefit.String()
	s.Valid = v.Valid
	s.SimilarIDs = v.SimilarIDs

	s.ShippingPrograms = make([]string, len(v.ShippingPrograms))
	for i, sp := range v.ShippingPrograms {
		s.ShippingPrograms[i] = string(sp)
	}

	s.BuyingOptions = make([]schema.BuyingOptionV1, len(v.BuyingOptions))
	for i, bo := range v.BuyingOptions {
		s.BuyingOptions[i] = schema.BuyingOptionV1{
			OfferID:    bo.OfferID,
			MerchantID: bo.MerchantID,
			Price:      bo.Price.String(),
		}
	}

	if v.Images == nil {
		return
	}
	s.Images = &schema.ProductImagesV1{
		Images: make([]schema.ImageV1, len(v.Images.Images)),
	}
	for i, img := range v.Images.Images {
		s.Images.Images[i].Variant = img.Variant
		if img.LowRes != nil {
			s.Images.Images[i].LowRes = &schema.MediaV1{
				ID:        img.LowRes.ID,
				Extension: img.LowRes.Extension,
				Width:     img.LowRes.Width,
				Height:    img.LowRes.Height,
			}
		}
	}
	return
}

// schemaV1ToProduct never fails: a product with malformed or negative
// price is marked as invalid, so the listing skips it.
func schemaV1ToProduct(s schema.ProductV1) (v domain.Product) {
	const op = "schemaV1ToProduct"

	v.ProductID = s.ProductID
	v.Title = s.Title
	v.Valid = s.Valid
	v.SimilarIDs = s.SimilarIDs

	var err error
	v.Price, err = decimal.NewFromString(s.Price)
	if err != nil {
		slog.Warn("malformed price", "op", op, "productID", s.ProductID, "err", err)
		v.Valid = false
	}
	if v.Price.IsNegative() {
		slog.Warn("negative price", "op", op, "productID", s.ProductID)
		v.Valid = false
	}
	if s.TotalBenefit != "" {
		v.TotalBenefit, err = decimal.NewFromString(s.TotalBenefit)
		if err != nil {
			slog.Warn("malformed benefit", "op", op, "productID", s.ProductID, "err", err)
			v.Valid = false
		}
	}

	v.ShippingPrograms = make([]domain.ShippingProgram, len(s.ShippingPrograms))
	for i, sp := range s.ShippingPrograms {
		v.ShippingPrograms[i] = domain.ParseShippingProgram(sp)
	}

	for _, bo := range s.BuyingOptions {
		price, err := decimal.NewFromString(bo.Price)
		if err != nil {
			slog.Warn("malformed offer price", "op", op, "offerID", bo.OfferID, "err", err)
			continue
		}
		if price.IsNegative() {
			slog.Warn("negative offer price", "op", op, "offerID", bo.OfferID)
			continue
		}
		v.BuyingOptions = append(v.BuyingOptions, domain.BuyingOption{
			OfferID:    bo.OfferID,
			MerchantID: bo.MerchantID,
			Price:      price,
		})
	}

	if s.Images == nil {
		return
	}
	v.Images = &domain.ProductImages{
		Images: make([]domain.Image, len(s.Images.Images)),
	}
	for i, img := range s.Images.Images {
		v.Images.Images[i].Variant = img.Variant
		if img.LowRes != nil {
			v.Images.Images[i].LowRes = &media.Descriptor{
				ID:        img.LowRes.ID,
				Extension: img.LowRes.Extension,
				Width:     img.LowRes.Width,
				Height:    img.LowRes.Height,
			}
		}
	}
	return
}
