package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/dto"
	availabilityapp "booking-service/internal/app/handlers/availability"
	bookingapp "booking-service/internal/app/handlers/booking"
	"booking-service/internal/app/middleware"
	appoutbox "booking-service/internal/app/outbox"
	"booking-service/internal/app/policies"
	"booking-service/internal/app/queries"
	"booking-service/internal/app/schedule"
	"booking-service/internal/infra/broker/kafka"
	"booking-service/internal/infra/config"
	redisstore "booking-service/internal/infra/db/redis"
	ginserver "booking-service/internal/infra/http/gin"
	"booking-service/internal/infra/obs"
	"booking-service/internal/infra/outbox"
	"booking-service/internal/infra/payments"
	"booking-service/internal/infra/receipts"
	"booking-service/internal/infra/storage/memory"
	"booking-service/internal/infra/storage/s3"
	"booking-service/internal/infra/validation"
)

const devJWTSecret = "dev-secret"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(getenv("APP_ENV", "dev")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("booking service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("booking service stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	if err := loadFixtures(ctx, cfg.ListingsFixtures, app.store.catalog, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", cfg.ListingsFixtures)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks:  app.checks,
		Timeout: 2 * time.Second,
	}, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(app.relay.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(app.scheduler.Run(gctx))
	})
	if app.consumer != nil {
		g.Go(func() error {
			logger.Info("payment events consumer starting", "topic", cfg.PaymentsTopic)
			return ignoreCanceled(app.consumer.Run(gctx, []string{cfg.PaymentsTopic}))
		})
	}
	return g.Wait()
}

type application struct {
	handlers  ginserver.Handlers
	store     *storage
	relay     *outbox.Worker
	scheduler *schedule.Scheduler
	consumer  *kafka.Consumer
	checks    map[string]obs.Check
	closers   []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{checks: map[string]obs.Check{}}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.store = store
	app.closers = append(app.closers, store.closers...)
	for name, check := range store.checks {
		app.checks[name] = check
	}

	var (
		locker      policies.ListingLocker = memory.NewKeyedLocker()
		idempotency                        = store.idempotency
		limiter     ginserver.RateLimiter  = memory.NewSlidingWindowLimiter(cfg.RateLimit, cfg.RateLimitEvery)
	)
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.New(ctx, redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			app.close(logger)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		app.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		locker = redisstore.NewListingLocker(rdb, cfg.LockTTL)
		idempotency = redisstore.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		limiter = redisstore.NewSlidingWindowLimiter(rdb, "create_booking", cfg.RateLimit, cfg.RateLimitEvery)
		logger.Info("redis coordination enabled", "addr", cfg.RedisAddr)
	}

	gateway := newGateway(cfg)
	renderer := receipts.PDFRenderer{Brand: "Booking Service"}
	uploader, err := newReceiptStorage(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	if client, ok := uploader.(*s3.Client); ok {
		app.checks["s3"] = client.Ping
	}
	archiver := receipts.Archiver{Renderer: renderer, Storage: uploader}
	encoder := appoutbox.JSONEventEncoder{}
	voidTimeout := 5 * time.Second

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.CreateBookingResult](commandBus, &bookingapp.CreateBookingHandler{
		UoWFactory:  store.factory,
		Gateway:     gateway,
		Locker:      locker,
		Encoder:     encoder,
		Logger:      logger,
		VoidTimeout: voidTimeout,
	})
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.Booking](commandBus, &bookingapp.CancelBookingHandler{
		Gateway:     gateway,
		Encoder:     encoder,
		Logger:      logger,
		VoidTimeout: voidTimeout,
	})
	commands.RegisterHandler[bookingapp.ConfirmPaymentCommand, *bookingapp.SettlementResult](commandBus, &bookingapp.ConfirmPaymentHandler{
		Encoder:  encoder,
		Archiver: archiver,
		Logger:   logger,
	})
	commands.RegisterHandler[bookingapp.CancelPaymentIntentCommand, *bookingapp.SettlementResult](commandBus, &bookingapp.CancelPaymentIntentHandler{
		Encoder: encoder,
		Logger:  logger,
	})
	commands.RegisterHandler[bookingapp.ExpirePendingBookingsCommand, *bookingapp.SweepResult](commandBus, &bookingapp.ExpirePendingBookingsHandler{
		UoWFactory:  store.factory,
		Gateway:     gateway,
		Encoder:     encoder,
		Logger:      logger,
		TTL:         cfg.PendingTTL,
		VoidTimeout: voidTimeout,
	})
	commands.RegisterHandler[bookingapp.CompleteStaysCommand, *bookingapp.SweepResult](commandBus, &bookingapp.CompleteStaysHandler{
		UoWFactory: store.factory,
		Encoder:    encoder,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[availabilityapp.CheckAvailabilityQuery, dto.Availability](queryBus, &availabilityapp.CheckAvailabilityHandler{UoWFactory: store.factory})
	queries.RegisterHandler[bookingapp.ListGuestBookingsQuery, dto.GuestBookingCollection](queryBus, &bookingapp.ListGuestBookingsHandler{UoWFactory: store.factory, Logger: logger})
	queries.RegisterHandler[bookingapp.ListHostBookingsQuery, dto.HostBookingCollection](queryBus, &bookingapp.ListHostBookingsHandler{UoWFactory: store.factory, Logger: logger})
	queries.RegisterHandler[bookingapp.GetBookingReceiptQuery, *bookingapp.ReceiptDocument](queryBus, &bookingapp.GetBookingReceiptHandler{UoWFactory: store.factory, Renderer: renderer})

	validator := validation.New()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(validator),
		middleware.Authorization(middleware.PrincipalAuthorizer{}),
		middleware.Idempotency(idempotency, nil),
		middleware.Transaction(store.factory, nil),
		middleware.OutboxFlush(store.flusher, logger),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.PrincipalAuthorizer{}),
	)

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
			Currency: cfg.Currency,
		},
		Availability: ginserver.AvailabilityHandler{
			Queries: queryBusWithMiddleware,
			Logger:  logger,
		},
		Payments: ginserver.PaymentsHandler{
			Commands:      commandBusWithMiddleware,
			WebhookSecret: cfg.StripeWebhookSecret,
			Inbox:         store.inbox,
			Logger:        logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Secret: []byte(secret), Logger: logger}.Handle,
		CreateLimiter:  limiter,
	}

	producer, err := newEventProducer(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	if closer, ok := producer.(interface{ Close() error }); ok {
		app.closers = append(app.closers, func(context.Context) error { return closer.Close() })
	}
	app.relay = &outbox.Worker{
		Store:       store.outbox,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Wake:        store.wake,
	}

	app.scheduler = &schedule.Scheduler{
		Logger: logger,
		Jobs: []schedule.Job{
			{
				Name:     "expire_pending_bookings",
				Interval: cfg.SweepInterval,
				Run: func(ctx context.Context, now time.Time) error {
					_, err := commands.Dispatch[bookingapp.ExpirePendingBookingsCommand, *bookingapp.SweepResult](
						ctx, commandBusWithMiddleware, bookingapp.ExpirePendingBookingsCommand{Now: now})
					return err
				},
			},
			{
				Name:     "complete_stays",
				Interval: cfg.SweepInterval,
				Run: func(ctx context.Context, now time.Time) error {
					_, err := commands.Dispatch[bookingapp.CompleteStaysCommand, *bookingapp.SweepResult](
						ctx, commandBusWithMiddleware, bookingapp.CompleteStaysCommand{Now: now})
					return err
				},
			},
		},
	}

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, sarama.NewConfig(),
			kafka.PaymentEventsHandler{Commands: commandBusWithMiddleware, Inbox: store.inbox, Logger: logger}, logger)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.consumer = consumer
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	}
	return app, nil
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("resource close failed", "error", err)
		}
	}
	a.closers = nil
}

func newGateway(cfg config.Config) policies.PaymentGateway {
	if cfg.PaymentProvider == config.PaymentsStripe {
		return payments.NewStripeGateway(cfg.StripeSecretKey, nil)
	}
	return payments.NewFakeGateway()
}

func newReceiptStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (receipts.Uploader, error) {
	if strings.TrimSpace(cfg.S3Endpoint) == "" {
		logger.Info("S3_ENDPOINT not set, receipts are not archived")
		return s3.NoopUploader{}, nil
	}
	client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newEventProducer(cfg config.Config, logger *slog.Logger) (outbox.Producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, domain events are logged only")
		return outbox.LogProducer{Logger: logger}, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, sarama.NewConfig())
	if err != nil {
		return nil, err
	}
	return producer, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
