package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/pkg/media"
	"github.com/niksmo/product-page/pkg/retry"
	"github.com/niksmo/product-page/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type MockSerde struct {
	mock.Mock
}

func (m *MockSerde) Encode(v any) ([]byte, error) {
	args := m.Called(v)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockSerde) Decode(b []byte, v any) error {
	args := m.Called(b, v)
	if fn, ok := args.Get(0).(func(any)); ok {
		fn(v)
	}
	return args.Error(1)
}

type MockProducerClient struct {
	mock.Mock
}

func (m *MockProducerClient) ProduceSync(
	ctx context.Context, rs ...*kgo.Record,
) kgo.ProduceResults {
	args := m.Called(ctx, rs)
	return args.Get(0).(kgo.ProduceResults)
}

func (m *MockProducerClient) Close() {
	m.Called()
}

type MockSaver struct {
	mock.Mock
}

func (m *MockSaver) SaveProducts(ctx context.Context, ps []domain.Product) error {
	return m.Called(ctx, ps).Error(0)
}

type fakeGetter map[string]any

func (g fakeGetter) Get(key string) (any, error) {
	return g[key], nil
}

func testProduct() domain.Product {
	return domain.Product{
		ProductID:        "p1",
		Title:            "Shoes",
		Price:            decimal.RequireFromString("19.90"),
		TotalBenefit:     decimal.RequireFromString("2"),
		ShippingPrograms: []domain.ShippingProgram{domain.ShippingPrime},
		Valid:            true,
		SimilarIDs:       []string{"p2"},
		BuyingOptions: []domain.BuyingOption{
			{OfferID: "o1", MerchantID: "m1", Price: decimal.RequireFromString("19.90")},
		},
		Images: &domain.ProductImages{Images: []domain.Image{
			{LowRes: &media.Descriptor{ID: "main", Extension: "jpg", Width: 1, Height: 1}},
			{Variant: domain.LookVariant},
		}},
	}
}

func TestSchemaConversion(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		p := testProduct()
		got := schemaV1ToProduct(productToSchemaV1(p))

		assert.Equal(t, p.ProductID, got.ProductID)
		assert.True(t, p.Price.Equal(got.Price))
		assert.True(t, p.TotalBenefit.Equal(got.TotalBenefit))
		assert.Equal(t, p.ShippingPrograms, got.ShippingPrograms)
		assert.Equal(t, p.Valid, got.Valid)
		assert.Equal(t, p.SimilarIDs, got.SimilarIDs)
		require.Len(t, got.BuyingOptions, 1)
		assert.Equal(t, "o1", got.BuyingOptions[0].OfferID)
		assert.Equal(t, p.Images, got.Images)
	})

	t.Run("MalformedPriceMarksInvalid", func(t *testing.T) {
		got := schemaV1ToProduct(schema.ProductV1{
			ProductID: "broken", Price: "ten", Valid: true,
		})
		assert.False(t, got.Valid)
		assert.Nil(t, got.Images)
	})

	t.Run("NegativePriceMarksInvalid", func(t *testing.T) {
		got := schemaV1ToProduct(schema.ProductV1{
			ProductID: "p1", Price: "-5", Valid: true,
			BuyingOptions: []schema.BuyingOptionV1{
				{OfferID: "neg", Price: "-1"},
				{OfferID: "ok", Price: "2"},
			},
		})
		assert.False(t, got.Valid)
		require.Len(t, got.BuyingOptions, 1)
		assert.Equal(t, "ok", got.BuyingOptions[0].OfferID)
	})

	t.Run("MalformedOfferSkipped", func(t *testing.T) {
		got := schemaV1ToProduct(schema.ProductV1{
			Price: "1",
			BuyingOptions: []schema.BuyingOptionV1{
				{OfferID: "bad", Price: "?"},
				{OfferID: "good", Price: "1"},
			},
		})
		require.Len(t, got.BuyingOptions, 1)
		assert.Equal(t, "good", got.BuyingOptions[0].OfferID)
	})
}

func TestProductCodec(t *testing.T) {
	serde := new(MockSerde)
	c := newProductCodec(serde)

	_, err := c.Encode("not a product")
	assert.ErrorIs(t, err, ErrInvalidValueType)

	s := productToSchemaV1(testProduct())
	serde.On("Encode", s).Return([]byte("data"), nil)
	b, err := c.Encode(s)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), b)

	serde.On("Decode", []byte("data"), mock.Anything).Return(func(v any) {
		*(v.(*schema.ProductV1)) = s
	}, nil)
	v, err := c.Decode([]byte("data"))
	require.NoError(t, err)
	assert.Equal(t, s, v)
}

func TestProductsProducer(t *testing.T) {
	newProducer := func(cl ProducerClient, enc Encoder) ProductsProducer {
		p, err := NewProductsProducer(
			ProducerExistingClientOpt(cl),
			ProducerEncoderOpt(enc),
		)
		require.NoError(t, err)
		return p
	}

	t.Run("KeyedByProductID", func(t *testing.T) {
		cl := new(MockProducerClient)
		serde := new(MockSerde)
		serde.On("Encode", mock.Anything).Return([]byte("v"), nil)
		cl.On("ProduceSync", mock.Anything, mock.MatchedBy(func(rs []*kgo.Record) bool {
			return len(rs) == 1 && string(rs[0].Key) == "p1"
		})).Return(kgo.ProduceResults{})

		p := newProducer(cl, serde)
		require.NoError(t, p.ProduceProducts(t.Context(), []domain.Product{testProduct()}))
		cl.AssertExpectations(t)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		cl := new(MockProducerClient)
		p := newProducer(cl, new(MockSerde))
		require.NoError(t, p.ProduceProducts(t.Context(), nil))
		cl.AssertNotCalled(t, "ProduceSync", mock.Anything, mock.Anything)
	})

	t.Run("ProduceFailed", func(t *testing.T) {
		errBroker := errors.New("not leader")
		cl := new(MockProducerClient)
		serde := new(MockSerde)
		serde.On("Encode", mock.Anything).Return([]byte("v"), nil)
		cl.On("ProduceSync", mock.Anything, mock.Anything).
			Return(kgo.ProduceResults{{Err: errBroker}})

		p := newProducer(cl, serde)
		err := p.ProduceProducts(t.Context(), []domain.Product{testProduct()})
		assert.ErrorIs(t, err, errBroker)
	})

	t.Run("FailedProductsNamed", func(t *testing.T) {
		errBroker := errors.New("record too large")
		cl := new(MockProducerClient)
		serde := new(MockSerde)
		serde.On("Encode", mock.Anything).Return([]byte("v"), nil)
		cl.On("ProduceSync", mock.Anything, mock.Anything).Return(kgo.ProduceResults{
			{Record: &kgo.Record{Key: []byte("p1")}},
			{Record: &kgo.Record{Key: []byte("p2")}, Err: errBroker},
		})

		p2 := testProduct()
		p2.ProductID = "p2"
		p := newProducer(cl, serde)
		err := p.ProduceProducts(t.Context(), []domain.Product{testProduct(), p2})
		require.ErrorIs(t, err, errBroker)
		assert.Contains(t, err.Error(), `product "p2"`)
		assert.NotContains(t, err.Error(), `product "p1"`)
	})

	t.Run("EncodeFailed", func(t *testing.T) {
		errEncode := errors.New("schema mismatch")
		cl := new(MockProducerClient)
		serde := new(MockSerde)
		serde.On("Encode", mock.Anything).Return(nil, errEncode)

		p := newProducer(cl, serde)
		err := p.ProduceProducts(t.Context(), []domain.Product{testProduct()})
		assert.ErrorIs(t, err, errEncode)
		cl.AssertNotCalled(t, "ProduceSync", mock.Anything, mock.Anything)
	})

	t.Run("TooFewOpts", func(t *testing.T) {
		_, err := NewProductsProducer(ProducerEncoderOpt(new(MockSerde)))
		assert.ErrorIs(t, err, ErrTooFewOpts)
	})
}

type MockConsumerClient struct {
	mock.Mock
}

func (m *MockConsumerClient) PollFetches(ctx context.Context) kgo.Fetches {
	return m.Called(ctx).Get(0).(kgo.Fetches)
}

func (m *MockConsumerClient) CommitUncommittedOffsets(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConsumerClient) AllowRebalance() {
	m.Called()
}

func (m *MockConsumerClient) Close() {
	m.Called()
}

func fetchesOf(records ...*kgo.Record) kgo.Fetches {
	for i, r := range records {
		r.Topic = "products"
		r.Offset = int64(i)
	}
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic: "products",
		Partitions: []kgo.FetchPartition{{
			Records: records,
		}},
	}}}}
}

func decodesTo(serde *MockSerde, value string, s schema.ProductV1) {
	serde.On("Decode", []byte(value), mock.Anything).Return(func(v any) {
		*(v.(*schema.ProductV1)) = s
	}, nil)
}

func TestProductsConsumer(t *testing.T) {
	fastRetry := ConsumerRetryOpt(retry.RetryConfig{
		MaxAttempts: 2,
		Backoff:     retry.LinearBackoff(time.Millisecond),
	}, time.Millisecond)

	newConsumer := func(
		cl ConsumerClient, serde *MockSerde, saver *MockSaver, opts ...ConsumerOpt,
	) ProductsConsumer {
		c, err := NewProductsConsumer(append([]ConsumerOpt{
			ConsumerExistingClientOpt(cl),
			ConsumerDecoderOpt(serde),
			ProductsConsumerSaverOpt(saver),
			fastRetry,
		}, opts...)...)
		require.NoError(t, err)
		return c
	}

	t.Run("SaveRepeatedUntilSuccess", func(t *testing.T) {
		cl := new(MockConsumerClient)
		serde := new(MockSerde)
		saver := new(MockSaver)
		errDB := errors.New("connection refused")

		decodesTo(serde, "p1", productToSchemaV1(testProduct()))
		cl.On("PollFetches", mock.Anything).Return(fetchesOf(&kgo.Record{Value: []byte("p1")}))
		cl.On("AllowRebalance").Once()
		cl.On("CommitUncommittedOffsets", mock.Anything).Return(nil).Once()
		saver.On("SaveProducts", mock.Anything, mock.Anything).Return(errDB).Times(3)
		saver.On("SaveProducts", mock.Anything, mock.Anything).Return(nil).Once()

		c := newConsumer(cl, serde, saver)
		require.NoError(t, c.consume(t.Context()))

		saver.AssertNumberOfCalls(t, "SaveProducts", 4)
		cl.AssertExpectations(t)
	})

	t.Run("StoppedBeforeSaveNotCommitted", func(t *testing.T) {
		cl := new(MockConsumerClient)
		serde := new(MockSerde)
		saver := new(MockSaver)
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		decodesTo(serde, "p1", productToSchemaV1(testProduct()))
		cl.On("PollFetches", mock.Anything).Return(fetchesOf(&kgo.Record{Value: []byte("p1")}))
		cl.On("AllowRebalance").Once()
		saver.On("SaveProducts", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(errors.New("connection refused"))

		c := newConsumer(cl, serde, saver)
		assert.ErrorIs(t, c.consume(ctx), context.Canceled)
		cl.AssertNotCalled(t, "CommitUncommittedOffsets", mock.Anything)
		cl.AssertExpectations(t)
	})

	t.Run("UndecodableDeadLettered", func(t *testing.T) {
		cl := new(MockConsumerClient)
		dl := new(MockProducerClient)
		serde := new(MockSerde)
		saver := new(MockSaver)
		errMagic := errors.New("magic byte")

		serde.On("Decode", []byte("bad"), mock.Anything).Return(nil, errMagic)
		decodesTo(serde, "p1", productToSchemaV1(testProduct()))
		cl.On("PollFetches", mock.Anything).Return(fetchesOf(
			&kgo.Record{Key: []byte("x"), Value: []byte("bad")},
			&kgo.Record{Key: []byte("p1"), Value: []byte("p1")},
		))
		cl.On("AllowRebalance").Once()
		cl.On("CommitUncommittedOffsets", mock.Anything).Return(nil).Once()
		dl.On("ProduceSync", mock.Anything, mock.MatchedBy(func(rs []*kgo.Record) bool {
			if len(rs) != 1 || string(rs[0].Value) != "bad" {
				return false
			}
			headers := make(map[string]string)
			for _, h := range rs[0].Headers {
				headers[h.Key] = string(h.Value)
			}
			return headers[HeaderDeadLetterErr] == errMagic.Error() &&
				headers[HeaderDeadLetterSource] == "products/0/0"
		})).Return(kgo.ProduceResults{}).Once()
		saver.On("SaveProducts", mock.Anything, mock.MatchedBy(func(ps []domain.Product) bool {
			return len(ps) == 1 && ps[0].ProductID == "p1"
		})).Return(nil).Once()

		c := newConsumer(cl, serde, saver, ConsumerExistingDeadLetterOpt(dl))
		require.NoError(t, c.consume(t.Context()))

		dl.AssertExpectations(t)
		saver.AssertExpectations(t)
		cl.AssertExpectations(t)
	})

	t.Run("UndecodableSkippedWithoutDeadLetter", func(t *testing.T) {
		cl := new(MockConsumerClient)
		serde := new(MockSerde)
		saver := new(MockSaver)

		serde.On("Decode", []byte("bad"), mock.Anything).Return(nil, errors.New("magic byte"))
		decodesTo(serde, "empty", schema.ProductV1{Title: "no id"})
		decodesTo(serde, "p1", productToSchemaV1(testProduct()))
		cl.On("PollFetches", mock.Anything).Return(fetchesOf(
			&kgo.Record{Value: []byte("bad")},
			&kgo.Record{Value: []byte("empty")},
			&kgo.Record{Value: []byte("p1")},
		))
		cl.On("AllowRebalance").Once()
		cl.On("CommitUncommittedOffsets", mock.Anything).Return(nil).Once()
		saver.On("SaveProducts", mock.Anything, mock.MatchedBy(func(ps []domain.Product) bool {
			return len(ps) == 1 && ps[0].ProductID == "p1"
		})).Return(nil).Once()

		c := newConsumer(cl, serde, saver)
		require.NoError(t, c.consume(t.Context()))
		saver.AssertExpectations(t)
		cl.AssertExpectations(t)
	})

	t.Run("LatestRecordWins", func(t *testing.T) {
		cl := new(MockConsumerClient)
		serde := new(MockSerde)
		saver := new(MockSaver)

		old, latest, other := testProduct(), testProduct(), testProduct()
		latest.Title = "Boots"
		other.ProductID = "p2"
		decodesTo(serde, "old", productToSchemaV1(old))
		decodesTo(serde, "other", productToSchemaV1(other))
		decodesTo(serde, "latest", productToSchemaV1(latest))
		cl.On("PollFetches", mock.Anything).Return(fetchesOf(
			&kgo.Record{Value: []byte("old")},
			&kgo.Record{Value: []byte("other")},
			&kgo.Record{Value: []byte("latest")},
		))
		cl.On("AllowRebalance").Once()
		cl.On("CommitUncommittedOffsets", mock.Anything).Return(nil).Once()
		saver.On("SaveProducts", mock.Anything, mock.MatchedBy(func(ps []domain.Product) bool {
			return len(ps) == 2 &&
				ps[0].ProductID == "p1" && ps[0].Title == "Boots" &&
				ps[1].ProductID == "p2"
		})).Return(nil).Once()

		c := newConsumer(cl, serde, saver)
		require.NoError(t, c.consume(t.Context()))
		saver.AssertExpectations(t)
	})

	t.Run("EmptyPollNotCommitted", func(t *testing.T) {
		cl := new(MockConsumerClient)
		saver := new(MockSaver)
		cl.On("PollFetches", mock.Anything).Return(kgo.Fetches{})
		cl.On("AllowRebalance").Once()

		c := newConsumer(cl, new(MockSerde), saver)
		require.NoError(t, c.consume(t.Context()))
		cl.AssertNotCalled(t, "CommitUncommittedOffsets", mock.Anything)
		saver.AssertNotCalled(t, "SaveProducts", mock.Anything, mock.Anything)
	})

	t.Run("RunStopsOnClosedClient", func(t *testing.T) {
		cl := new(MockConsumerClient)
		cl.On("PollFetches", mock.Anything).Return(kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Partitions: []kgo.FetchPartition{{Err: kgo.ErrClientClosed}},
		}}}})
		cl.On("AllowRebalance").Once()

		c := newConsumer(cl, new(MockSerde), new(MockSaver))
		done := make(chan struct{})
		go func() {
			c.Run(t.Context())
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("consumer is still running")
		}
		cl.AssertExpectations(t)
	})

	t.Run("CloseClosesDeadLetter", func(t *testing.T) {
		cl := new(MockConsumerClient)
		dl := new(MockProducerClient)
		cl.On("Close").Once()
		dl.On("Close").Once()

		c := newConsumer(cl, new(MockSerde), new(MockSaver), ConsumerExistingDeadLetterOpt(dl))
		c.Close()
		cl.AssertExpectations(t)
		dl.AssertExpectations(t)
	})
}

func TestNewProductsConsumerRequiresOpts(t *testing.T) {
	_, err := NewProductsConsumer(ConsumerDecoderOpt(new(MockSerde)))
	assert.ErrorIs(t, err, ErrTooFewOpts)

	_, err = NewProductsConsumer(ConsumerRetryOpt(retry.RetryConfig{}, 0))
	assert.Error(t, err)
}

func TestCatalogView(t *testing.T) {
	s := productToSchemaV1(testProduct())
	v := CatalogView{getter: fakeGetter{"p1": s, "weird": 42}}

	t.Run("ReadProduct", func(t *testing.T) {
		p, err := v.ReadProduct(t.Context(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ProductID)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := v.ReadProduct(t.Context(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UnexpectedType", func(t *testing.T) {
		_, err := v.ReadProduct(t.Context(), "weird")
		assert.ErrorIs(t, err, ErrInvalidValueType)
	})

	t.Run("ReadProductsAligned", func(t *testing.T) {
		ps, err := v.ReadProducts(t.Context(), []string{"missing", "p1"})
		require.NoError(t, err)
		require.Len(t, ps, 2)
		assert.Nil(t, ps[0])
		require.NotNil(t, ps[1])
		assert.Equal(t, "p1", ps[1].ProductID)
	})
}

func TestCatalogViewWaitRecovered(t *testing.T) {
	t.Run("Running", func(t *testing.T) {
		running := make(chan struct{})
		close(running)
		v := CatalogView{waitRunning: func() <-chan struct{} { return running }}
		require.NoError(t, v.WaitRecovered(t.Context()))
	})

	t.Run("StoppedWhileRecovering", func(t *testing.T) {
		v := CatalogView{waitRunning: func() <-chan struct{} { return make(chan struct{}) }}
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, v.WaitRecovered(ctx), context.DeadlineExceeded)
	})
}
