package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ups-tracking/ups-api/internal/config"
	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/repository"
	"github.com/ups-tracking/ups-api/internal/service"
	"github.com/ups-tracking/ups-api/internal/status"
	"github.com/ups-tracking/ups-api/internal/tracking"
	httpt "github.com/ups-tracking/ups-api/internal/transport/http"
	kafkat "github.com/ups-tracking/ups-api/internal/transport/kafka"
	"github.com/ups-tracking/ups-api/internal/upload"
	"github.com/ups-tracking/ups-api/pkg/cache"
	"github.com/ups-tracking/ups-api/pkg/kafka"
	"github.com/ups-tracking/ups-api/pkg/kafka/dlq"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
	"github.com/ups-tracking/ups-api/pkg/objectstorage"
	"github.com/ups-tracking/ups-api/pkg/retry"
	"github.com/ups-tracking/ups-api/pkg/storage/mongo"
	"github.com/ups-tracking/ups-api/pkg/storage/postgres"
	"github.com/ups-tracking/ups-api/pkg/storage/postgres/transaction"
	"github.com/ups-tracking/ups-api/pkg/storage/redis"

	"golang.org/x/sync/errgroup"
)

const _closeTimeout = 10 * time.Second

// Run wires the shipment service and blocks until ctx is cancelled or a
// component fails.
func Run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)

	metrics := initMetrics(ctx, eg, &cfg.Metrics, log)

	store, closeStore, err := initStore(ctx, cfg, log, metrics)
	if err != nil {
		return err
	}
	defer closeStore()

	uploader, closeStorage, err := initUploader(ctx, &cfg.Storage, log, metrics)
	if err != nil {
		return err
	}
	defer closeStorage()

	shipmentCache, closeCache, err := initCache(ctx, eg, cfg, log, metrics)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, closePublisher := initEventPublisher(&cfg.Events, log, metrics)
	defer closePublisher()

	shipmentService, err := initShipmentService(cfg, store, uploader, publisher, shipmentCache, log, metrics)
	if err != nil {
		return err
	}

	initHTTPServer(ctx, eg, &cfg.HTTP, shipmentService, log, metrics)

	closeKafka, err := initKafkaComponents(ctx, eg, cfg, shipmentService, log, metrics)
	if err != nil {
		return err
	}
	defer closeKafka()

	return waitForShutdown(eg)
}

func initMetrics(
	ctx context.Context,
	eg *errgroup.Group,
	cfg *config.Metrics,
	log logger.Logger,
) metric.Factory {
	metrics := metric.NewFactory()
	if !cfg.Enabled {
		return metrics
	}

	srv := httpt.NewServer("metrics", metrics.Handler(), httpt.ServerConfig{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, log.With("component", "metrics server"))
	eg.Go(func() error { return srv.Run(ctx) })

	return metrics
}

func initStore(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
	metrics metric.Factory,
) (service.ShipmentStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		return initPostgresStore(ctx, &cfg.Postgres, log, metrics)
	default:
		return initMongoStore(ctx, &cfg.Mongo, log)
	}
}

func initMongoStore(
	ctx context.Context,
	cfg *config.Mongo,
	log logger.Logger,
) (service.ShipmentStore, func(), error) {
	db, err := mongo.NewMongo(
		ctx,
		cfg.URI,
		cfg.Database,
		log.With("component", "mongo"),
		mongo.MaxPoolSize(cfg.MaxPoolSize),
		mongo.ConnectTimeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("app.initMongoStore: %w", err)
	}

	closeDB := func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _closeTimeout)
		defer cancel()
		if closeErr := db.Close(closeCtx); closeErr != nil {
			log.Warnw("close mongo", "error", closeErr)
		}
	}

	repo := repository.NewMongoShipmentRepository(db, cfg.Collection)
	if err = repo.EnsureIndexes(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("app.initMongoStore: %w", err)
	}

	return repo, closeDB, nil
}

func initPostgresStore(
	ctx context.Context,
	cfg *config.Postgres,
	log logger.Logger,
	metrics metric.Factory,
) (service.ShipmentStore, func(), error) {
	db, err := postgres.NewPostgres(
		ctx,
		cfg.DSN(),
		log.With("component", "database"),
		postgres.MaxPoolSize(cfg.PoolMax),
		postgres.ConnectRetry(retry.Policy{
			MaxAttempts: cfg.ConnAttempts,
			BaseDelay:   cfg.BaseRetryDelay,
			MaxDelay:    cfg.MaxRetryDelay,
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("app.initPostgresStore: %w", err)
	}

	if cfg.Migrate {
		if err = repository.Migrate(ctx, db.DB(), log.With("component", "migrations")); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("app.initPostgresStore: %w", err)
		}
	}

	txManager, err := transaction.NewManager(
		db,
		log.With("component", "transaction manager"),
		metrics.Transaction(),
	)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("app.initPostgresStore: %w", err)
	}

	return repository.NewPostgresShipmentRepository(db, txManager), db.Close, nil
}

func initUploader(
	ctx context.Context,
	cfg *config.Storage,
	log logger.Logger,
	metrics metric.Factory,
) (*upload.Coordinator, func(), error) {
	opts := []objectstorage.Option{
		objectstorage.WithCDNDomain(cfg.CDNDomain),
		objectstorage.WithBreaker(cfg.BreakerTrip, cfg.BreakerCooldown),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, objectstorage.WithCredentialsFile(cfg.CredentialsFile))
	}

	gcs, err := objectstorage.NewGCS(ctx, cfg.Bucket, log.With("component", "object storage"), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("app.initUploader: %w", err)
	}

	closeGCS := func() {
		if closeErr := gcs.Close(); closeErr != nil {
			log.Warnw("close object storage", "error", closeErr)
		}
	}

	coordinator, err := upload.NewCoordinator(
		gcs,
		log.With("component", "upload"),
		metrics.Upload(),
		upload.WithDefaultFolder(cfg.Folder),
		upload.WithTimeout(cfg.UploadTimeout),
		upload.WithAllowedTypes(cfg.AllowedTypes...),
	)
	if err != nil {
		closeGCS()
		return nil, nil, fmt.Errorf("app.initUploader: %w", err)
	}

	return coordinator, closeGCS, nil
}

func initCache(
	ctx context.Context,
	eg *errgroup.Group,
	cfg *config.Config,
	log logger.Logger,
	metrics metric.Factory,
) (cache.Cache[string, *entity.Shipment], func(), error) {
	log = log.With("component", "cache")

	if cfg.Cache.Driver == config.CacheRedis {
		rdb, err := redis.NewRedis(ctx, cfg.Redis.Addr, log,
			redis.Password(cfg.Redis.Password),
			redis.DB(cfg.Redis.DB),
			redis.PoolSize(cfg.Redis.PoolSize),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("app.initCache: %w", err)
		}

		closeRedis := func() {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Warnw("close redis", "error", closeErr)
			}
		}
		return cache.NewRedis[*entity.Shipment](rdb.Client, "shipments", cfg.Redis.Prefix, log, metrics.Cache()),
			closeRedis, nil
	}

	memory, err := cache.NewMemory[string, *entity.Shipment]("shipments", cfg.Cache.Capacity, log, metrics.Cache())
	if err != nil {
		return nil, nil, fmt.Errorf("app.initCache: %w", err)
	}
	eg.Go(func() error {
		memory.Run(ctx, cfg.Cache.CleanupInterval)
		return nil
	})
	return memory, func() {}, nil
}

func initEventPublisher(
	cfg *config.Events,
	log logger.Logger,
	metrics metric.Factory,
) (service.EventPublisher, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}

	publisher := kafkat.NewEventPublisher(
		kafka.NewWriter(kafka.WriterConfig{
			Brokers:      cfg.Brokers,
			Topic:        cfg.Topic,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}, log.With("component", "events writer")),
		metrics.Events(),
		log.With("component", "event publisher"),
	)

	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Warnw("close event publisher", "error", err)
		}
	}
}

func initShipmentService(
	cfg *config.Config,
	store service.ShipmentStore,
	uploader service.ImageUploader,
	publisher service.EventPublisher,
	shipmentCache cache.Cache[string, *entity.Shipment],
	log logger.Logger,
	metrics metric.Factory,
) (*service.ShipmentService, error) {
	trackingMetrics := metrics.Tracking()

	generator, err := tracking.NewGenerator(
		tracking.WithPrefix(cfg.Tracking.Prefix),
		tracking.WithMaxAttempts(cfg.Tracking.MaxAttempts),
		tracking.WithObserver(
			trackingMetrics.Generated,
			func() { trackingMetrics.Collision("precheck") },
		),
	)
	if err != nil {
		return nil, fmt.Errorf("app.initShipmentService: %w", err)
	}

	validator, err := status.New(cfg.Tracking.StatusPolicy)
	if err != nil {
		return nil, fmt.Errorf("app.initShipmentService: %w", err)
	}

	shipmentService, err := service.NewShipmentService(
		store,
		generator,
		uploader,
		validator,
		publisher,
		shipmentCache,
		log.With("component", "shipment service"),
		trackingMetrics,
		service.WithCacheTTL(cfg.Cache.TTL),
		service.WithImageFolder(cfg.Storage.Folder),
		service.WithCreateRetries(cfg.Tracking.CreateRetries),
		service.WithStoreTimeout(cfg.Store.OperationTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("app.initShipmentService: %w", err)
	}

	return shipmentService, nil
}

func initHTTPServer(
	ctx context.Context,
	eg *errgroup.Group,
	cfg *config.HTTP,
	shipmentService *service.ShipmentService,
	log logger.Logger,
	metrics metric.Factory,
) {
	handler := httpt.NewShipmentHandler(
		shipmentService,
		cfg,
		log.With("component", "http handler"),
		metrics.HTTP(),
	)

	srv := httpt.NewServer("api", handler.Engine(), httpt.ServerConfig{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
	}, log.With("component", "http server"))
	eg.Go(func() error { return srv.Run(ctx) })
}

func initKafkaComponents(
	ctx context.Context,
	eg *errgroup.Group,
	cfg *config.Config,
	shipmentService *service.ShipmentService,
	log logger.Logger,
	metrics metric.Factory,
) (func(), error) {
	if !cfg.Kafka.Enabled {
		log.Infow("status update consumer disabled")
		return func() {}, nil
	}

	dlqBrokers := cfg.DLQ.Brokers
	if len(dlqBrokers) == 0 {
		dlqBrokers = cfg.Kafka.Brokers
	}

	deadLetterQueue, err := dlq.NewDLQ(
		kafka.NewWriter(kafka.WriterConfig{
			Brokers:      dlqBrokers,
			Topic:        cfg.DLQ.Topic,
			BatchSize:    cfg.DLQ.BatchSize,
			BatchTimeout: cfg.DLQ.BatchTimeout,
			WriteTimeout: cfg.DLQ.WriteTimeout,
			ReadTimeout:  cfg.DLQ.ReadTimeout,
		}, log.With("component", "dlq writer")),
		cfg.DLQ.Topic,
		log.With("component", "dlq"),
		metrics.DLQ(),
		dlq.WithRetryDelay(cfg.DLQ.RetryDelay, 5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("app.initKafkaComponents: dead letter queue creation: %w", err)
	}

	closeDLQ := func() {
		if closeErr := deadLetterQueue.Close(); closeErr != nil {
			log.Warnw("close dlq writer", "error", closeErr)
		}
	}

	statusReader, err := kafka.NewReader(ctx, kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}, log.With("component", "kafka reader"))
	if err != nil {
		closeDLQ()
		return nil, fmt.Errorf("app.initKafkaComponents: kafka reader creation: %w", err)
	}

	statusConsumer := kafkat.NewStatusConsumer(
		statusReader,
		deadLetterQueue,
		shipmentService,
		metrics.Kafka(),
		log.With("component", "status consumer"),
	)
	eg.Go(func() error {
		return statusConsumer.Start(ctx)
	})

	if !cfg.DLQ.Enabled {
		return closeDLQ, nil
	}

	dlqReader, err := kafka.NewReader(ctx, kafka.ReaderConfig{
		Brokers: dlqBrokers,
		Topic:   cfg.DLQ.Topic,
		GroupID: cfg.DLQ.GroupID,
	}, log.With("component", "dlq reader"))
	if err != nil {
		return closeDLQ, fmt.Errorf("app.initKafkaComponents: dlq reader creation: %w", err)
	}

	dlqProcessor := kafkat.NewDLQProcessor(
		dlqReader,
		deadLetterQueue,
		statusConsumer.HandleMessage,
		cfg.DLQ.MaxRetryCount,
		cfg.DLQ.RetryDelay,
		log.With("component", "dlq processor"),
	)
	eg.Go(func() error {
		return dlqProcessor.Start(ctx)
	})

	return closeDLQ, nil
}

func waitForShutdown(eg *errgroup.Group) error {
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app.waitForShutdown: application failed: %w", err)
	}
	return nil
}
