package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/niksmo/product-page/pkg/retry"
	"github.com/niksmo/product-page/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var ErrEmptyProductID = errors.New("empty product id")

// Headers of a dead letter record.
const (
	HeaderDeadLetterErr    = "dead-letter-error"
	HeaderDeadLetterSource = "dead-letter-source"
)

const defaultRoundPause = time.Second

type ConsumerOpt func(*consumerOpts) error

// ConsumerClientOpt creates group consumer [kgo.Client]
// with manual offsets commit.
func ConsumerClientOpt(
	seedBrokers []string, topic, group string, tlsConfig *tls.Config,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		kgoOpts := []kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
			kgo.BlockRebalanceOnPoll(),
		}
		if tlsConfig != nil {
			kgoOpts = append(kgoOpts, kgo.DialTLSConfig(tlsConfig))
		}

		cl, err := kgo.NewClient(kgoOpts...)
		if err != nil {
			return err
		}
		co.cl = cl
		return nil
	}
}

// ConsumerExistingClientOpt sets already created client.
func ConsumerExistingClientOpt(cl ConsumerClient) ConsumerOpt {
	return func(co *consumerOpts) error {
		if cl == nil {
			return errors.New("consumer client is nil")
		}
		co.cl = cl
		return nil
	}
}

func ConsumerDecoderOpt(decoder Decoder) ConsumerOpt {
	return func(co *consumerOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		co.decoder = decoder
		return nil
	}
}

func ProductsConsumerSaverOpt(ps port.ProductsSaver) ConsumerOpt {
	return func(co *consumerOpts) error {
		if ps == nil {
			return errors.New("products saver is nil")
		}
		co.productsSaver = ps
		return nil
	}
}

// ConsumerDeadLetterOpt creates the producer of undecodable records.
//
// Without it such records are logged and skipped.
func ConsumerDeadLetterOpt(
	ctx context.Context, seedBrokers []string, topic string, tlsConfig *tls.Config,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		cl, err := newProducerClient(ctx, seedBrokers, topic, tlsConfig)
		if err != nil {
			return err
		}
		co.deadLetter = cl
		return nil
	}
}

// ConsumerExistingDeadLetterOpt sets already created dead letter client.
func ConsumerExistingDeadLetterOpt(cl ProducerClient) ConsumerOpt {
	return func(co *consumerOpts) error {
		if cl == nil {
			return errors.New("dead letter client is nil")
		}
		co.deadLetter = cl
		return nil
	}
}

// ConsumerRetryOpt sets the retry of a batch save and of dead letters.
// The round is repeated after roundPause until it succeeds or the consumer stops.
func ConsumerRetryOpt(cfg retry.RetryConfig, roundPause time.Duration) ConsumerOpt {
	return func(co *consumerOpts) error {
		if roundPause <= 0 {
			return errors.New("round pause must be positive")
		}
		co.retryCfg = cfg
		co.roundPause = roundPause
		return nil
	}
}

type consumerOpts struct {
	cl            ConsumerClient
	decoder       Decoder
	productsSaver port.ProductsSaver
	deadLetter    ProducerClient
	retryCfg      retry.RetryConfig
	roundPause    time.Duration
}

func (co *consumerOpts) apply(opts ...ConsumerOpt) error {
	for _, opt := range opts {
		if err := opt(co); err != nil {
			return err
		}
	}
	return nil
}

// A ProductsConsumer saves the catalog stream to the products storage.
//
// Offsets are committed only after the whole polled batch is saved
// and its undecodable records are dead lettered, so a failed save
// is repeated instead of being skipped by a later commit.
type ProductsConsumer struct {
	cl         ConsumerClient
	decoder    Decoder
	saver      port.ProductsSaver
	deadLetter ProducerClient
	retryCfg   retry.RetryConfig
	roundPause time.Duration
}

type rejectedRecord struct {
	record *kgo.Record
	err    error
}

func NewProductsConsumer(opts ...ConsumerOpt) (ProductsConsumer, error) {
	const op = "NewProductsConsumer"

	options := consumerOpts{
		retryCfg: retry.RetryConfig{
			MaxAttempts: 3,
			Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
		},
		roundPause: defaultRoundPause,
	}
	if err := options.apply(opts...); err != nil {
		return ProductsConsumer{}, opErr(err, op)
	}

	if options.cl == nil || options.decoder == nil || options.productsSaver == nil {
		return ProductsConsumer{}, opErr(ErrTooFewOpts, op)
	}

	return ProductsConsumer{
		cl:         options.cl,
		decoder:    options.decoder,
		saver:      options.productsSaver,
		deadLetter: options.deadLetter,
		retryCfg:   options.retryCfg,
		roundPause: options.roundPause,
	}, nil
}

func (c ProductsConsumer) Run(ctx context.Context) {
	const op = "ProductsConsumer.Run"
	log := slog.With("op", op)

	log.Info("running")

	for {
		err := c.consume(ctx)
		switch {
		case ctx.Err() != nil:
			log.Info("stopped")
			return
		case errors.Is(err, kgo.ErrClientClosed):
			log.Info("client is closed")
			return
		case err != nil:
			log.Error("failed to consume", "err", err)
			c.pause(ctx)
		}
	}
}

func (c ProductsConsumer) Close() {
	const op = "ProductsConsumer.Close"
	log := slog.With("op", op)

	log.Info("closing consumer...")
	c.cl.Close()
	if c.deadLetter != nil {
		c.deadLetter.Close()
	}
	log.Info("consumer is closed")
}

func (c ProductsConsumer) consume(ctx context.Context) error {
	const op = "ProductsConsumer.consume"
	log := slog.With("op", op)

	fetches := c.cl.PollFetches(ctx)
	defer c.cl.AllowRebalance()

	if fetches.IsClientClosed() {
		return kgo.ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return opErr(err, op)
	}

	fetches.EachError(func(topic string, partition int32, err error) {
		log.Warn(
			"fetch partition failed",
			"topic", topic, "partition", partition, "err", err,
		)
	})

	if fetches.NumRecords() == 0 {
		return nil
	}

	batch, rejected := c.decodeBatch(fetches)

	if err := c.sendDeadLetters(ctx, rejected); err != nil {
		return opErr(err, op)
	}

	if err := c.save(ctx, batch); err != nil {
		return opErr(err, op)
	}

	if err := c.cl.CommitUncommittedOffsets(ctx); err != nil {
		return opErr(err, op)
	}

	log.Debug(
		"batch is saved",
		"nProducts", len(batch), "nRejected", len(rejected),
	)
	return nil
}

// decodeBatch keeps the latest record of every product
// at the position of its first occurrence.
func (c ProductsConsumer) decodeBatch(
	fetches kgo.Fetches,
) (batch []domain.Product, rejected []rejectedRecord) {
	positions := make(map[string]int)

	fetches.EachRecord(func(r *kgo.Record) {
		var s schema.ProductV1
		if err := c.decoder.Decode(r.Value, &s); err != nil {
			rejected = append(rejected, rejectedRecord{r, err})
			return
		}
		if s.ProductID == "" {
			rejected = append(rejected, rejectedRecord{r, ErrEmptyProductID})
			return
		}

		v := schemaV1ToProduct(s)
		if i, ok := positions[v.ProductID]; ok {
			batch[i] = v
			return
		}
		positions[v.ProductID] = len(batch)
		batch = append(batch, v)
	})
	return batch, rejected
}

func (c ProductsConsumer) save(ctx context.Context, batch []domain.Product) error {
	if len(batch) == 0 {
		return nil
	}
	return c.untilDone(ctx, "save products", func() error {
		return c.saver.SaveProducts(ctx, batch)
	})
}

func (c ProductsConsumer) sendDeadLetters(
	ctx context.Context, rejected []rejectedRecord,
) error {
	const op = "ProductsConsumer.sendDeadLetters"
	log := slog.With("op", op)

	if len(rejected) == 0 {
		return nil
	}

	if c.deadLetter == nil {
		for _, rr := range rejected {
			log.Error(
				"record is skipped",
				"source", recordSource(rr.record), "err", rr.err,
			)
		}
		return nil
	}

	rs := make([]*kgo.Record, len(rejected))
	for i, rr := range rejected {
		headers := append([]kgo.RecordHeader(nil), rr.record.Headers...)
		headers = append(headers,
			kgo.RecordHeader{Key: HeaderDeadLetterErr, Value: []byte(rr.err.Error())},
			kgo.RecordHeader{Key: HeaderDeadLetterSource, Value: []byte(recordSource(rr.record))},
		)
		rs[i] = &kgo.Record{
			Key:     rr.record.Key,
			Value:   rr.record.Value,
			Headers: headers,
		}
	}

	err := c.untilDone(ctx, "send dead letters", func() error {
		return c.deadLetter.ProduceSync(ctx, rs...).FirstErr()
	})
	if err != nil {
		return err
	}
	log.Warn("records are dead lettered", "nRecords", len(rs))
	return nil
}

// untilDone repeats retry rounds of fn until it succeeds or ctx is done.
func (c ProductsConsumer) untilDone(
	ctx context.Context, action string, fn func() error,
) error {
	const op = "ProductsConsumer.untilDone"
	log := slog.With("op", op, "action", action)

	for {
		err := retry.Do(ctx, c.retryCfg, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		log.Error("round failed, repeating", "err", err)
		c.pause(ctx)
	}
}

func (c ProductsConsumer) pause(ctx context.Context) {
	timer := time.NewTimer(c.roundPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func recordSource(r *kgo.Record) string {
	return r.Topic + "/" +
		strconv.FormatInt(int64(r.Partition), 10) + "/" +
		strconv.FormatInt(r.Offset, 10)
}
