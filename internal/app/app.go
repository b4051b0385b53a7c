package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/niksmo/product-page/config"
	"github.com/niksmo/product-page/internal/adapter"
	"github.com/niksmo/product-page/internal/adapter/cache"
	"github.com/niksmo/product-page/internal/adapter/httphandler"
	"github.com/niksmo/product-page/internal/adapter/kafka"
	"github.com/niksmo/product-page/internal/adapter/storage"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/niksmo/product-page/internal/core/service"
	"github.com/niksmo/product-page/pkg/retry"
	"github.com/niksmo/product-page/pkg/schema"
	"github.com/twmb/franz-go/pkg/sr"
)

type serdes struct {
	product schema.Serde
}

type catalogTable struct {
	processor kafka.CatalogProcessor
	view      kafka.CatalogView
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	tlsConfig  *tls.Config
	serdes     serdes
	producer   kafka.ProductsProducer
	sqlDB      storage.SQLDB
	repository storage.ProductsRepository
	table      *catalogTable
	catalog    port.CatalogProvider
	service    service.Service
	consumer   kafka.ProductsConsumer
	httpServer httphandler.HTTPServer
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initTLS()
	app.initSerdes()
	app.initOutboundAdapters()
	app.initCatalog()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initTLS() {
	const op = "App.initTLS"

	files := app.cfg.Broker.TLS
	if !files.Enabled() {
		return
	}
	tlsConfig, err := adapter.MakeTLSConfig(files.CA, files.Cert, files.Key)
	if err != nil {
		app.fallDown(op, err)
	}
	app.tlsConfig = tlsConfig
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"
	urls := app.cfg.Broker.SchemaRegistryURLs

	srOpts := []sr.ClientOpt{sr.URLs(urls...)}
	if app.tlsConfig != nil {
		srOpts = append(srOpts, sr.DialTLSConfig(app.tlsConfig))
	}
	srClient, err := sr.NewClient(srOpts...)
	if err != nil {
		app.fallDown(op, err)
	}

	schemaIdentifier := schema.NewSchemaIdentifier(srClient)

	productSS := app.cfg.Broker.Topics.Products + "-value"
	productSerde, err := schema.NewProductSerde(
		app.ctx, productSS, schemaIdentifier,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.product = productSerde
}

func (app *App) initOutboundAdapters() {
	const op = "App.initOutboundAdapters"

	ctx := app.ctx
	seedBrokers := app.cfg.Broker.SeedBrokers
	productsTopic := app.cfg.Broker.Topics.Products

	productsProducer, err := kafka.NewProductsProducer(
		kafka.ProducerClientOpt(ctx, seedBrokers, productsTopic, app.tlsConfig),
		kafka.ProducerEncoderOpt(app.serdes.product),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.producer = productsProducer

	sqlDB, err := storage.NewSQLDB(ctx, app.cfg.SQLDB)
	if err != nil {
		app.fallDown(op, err)
	}
	app.sqlDB = sqlDB
	app.repository = storage.NewProductsRepository(sqlDB)
}

// initCatalog selects the read side of the catalog.
func (app *App) initCatalog() {
	const op = "App.initCatalog"

	var catalog port.CatalogProvider
	switch app.cfg.Catalog.Source {
	case config.CatalogSourceTable:
		table, err := app.newCatalogTable()
		if err != nil {
			app.fallDown(op, err)
		}
		app.table = table
		catalog = table.view
	default:
		catalog = app.repository
	}

	if ttl := app.cfg.Catalog.CacheTTL; ttl > 0 {
		catalog = cache.NewCatalogCache(catalog, ttl)
	}
	app.catalog = catalog
}

func (app *App) newCatalogTable() (*catalogTable, error) {
	broker := app.cfg.Broker

	processor, err := kafka.NewCatalogProcessor(kafka.CatalogProcessorConfig{
		SeedBrokers:  broker.SeedBrokers,
		InputStream:  broker.Topics.Products,
		Group:        broker.Consumers.CatalogGroup,
		ProductSerde: app.serdes.product,
		TLSConfig:    app.tlsConfig,
	})
	if err != nil {
		return nil, err
	}

	view, err := kafka.NewCatalogView(kafka.CatalogViewConfig{
		SeedBrokers:  broker.SeedBrokers,
		Group:        broker.Consumers.CatalogGroup,
		ProductSerde: app.serdes.product,
		TLSConfig:    app.tlsConfig,
	})
	if err != nil {
		processor.Close()
		return nil, err
	}

	return &catalogTable{processor: processor, view: view}, nil
}

func (app *App) initCoreService() {
	app.service = service.New(service.Opts{
		ProductsProducer: app.producer,
		ProductsStorage:  app.repository,
		Catalog:          app.catalog,
		ImageHost:        app.cfg.Listing.ImageHost,
		LookVariant:      app.cfg.Listing.LookVariant,
	})
}

func (app *App) initInboundAdapters() {
	const op = "App.initInboundAdapters"
	broker := app.cfg.Broker

	consumerOpts := []kafka.ConsumerOpt{
		kafka.ConsumerClientOpt(
			broker.SeedBrokers,
			broker.Topics.Products,
			broker.Consumers.ProductsSaverGroup,
			app.tlsConfig,
		),
		kafka.ConsumerDecoderOpt(app.serdes.product),
		kafka.ProductsConsumerSaverOpt(app.service),
		kafka.ConsumerRetryOpt(retry.RetryConfig{
			MaxAttempts: 5,
			Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
		}, 5*time.Second),
	}
	if dl := broker.Topics.ProductsDeadLetter; dl != "" {
		consumerOpts = append(consumerOpts, kafka.ConsumerDeadLetterOpt(
			app.ctx, broker.SeedBrokers, dl, app.tlsConfig,
		))
	}

	consumer, err := kafka.NewProductsConsumer(consumerOpts...)
	if err != nil {
		app.fallDown(op, err)
	}
	app.consumer = consumer

	mux := http.NewServeMux()
	httphandler.RegisterProducts(
		mux, app.service, app.service,
		app.cfg.Listing.DefaultLongestDimension,
	)
	app.httpServer = httphandler.NewHTTPServer(
		httphandler.ServerConfig{
			Addr:           app.cfg.HTTPServerAddr,
			RequestTimeout: app.cfg.RequestTimeout,
		},
		mux,
	)
}

func (app *App) Run(stopFn context.CancelFunc) {
	ctx := app.ctx

	if app.table != nil {
		var wg sync.WaitGroup
		wg.Add(1)
		go app.table.processor.Run(ctx, &wg)
		wg.Wait()
		go app.table.view.Run(ctx)
		if err := app.table.view.WaitRecovered(ctx); err != nil {
			slog.Error("catalog table is not recovered", "err", err)
		}
	}

	go app.consumer.Run(ctx)
	go app.httpServer.Run(stopFn)

	slog.Info("application is running", "catalogSource", app.cfg.Catalog.Source)
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)
	app.consumer.Close()
	if app.table != nil {
		app.table.processor.Close()
	}
	app.producer.Close()
	app.sqlDB.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
