package main

import (
	"context"
	"fmt"
	"log/slog"

	"booking-service/internal/app/middleware"
	appoutbox "booking-service/internal/app/outbox"
	"booking-service/internal/app/uow"
	domainlistings "booking-service/internal/domain/listings"
	domainuser "booking-service/internal/domain/user"
	"booking-service/internal/infra/config"
	mongostore "booking-service/internal/infra/db/mongo"
	"booking-service/internal/infra/db/postgres"
	"booking-service/internal/infra/inbox"
	"booking-service/internal/infra/obs"
	"booking-service/internal/infra/payments"
	"booking-service/internal/infra/storage/memory"
)

type listingSaver interface {
	Save(ctx context.Context, l *domainlistings.Listing) error
}

type profileSaver interface {
	Save(ctx context.Context, p domainuser.Profile) error
}

// catalog is the write side of listings and profiles used to seed fixtures.
type catalog struct {
	listings listingSaver
	profiles profileSaver
}

// storage bundles everything a backend contributes to the application.
type storage struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Store
	flusher     appoutbox.Flusher
	wake        <-chan struct{}
	idempotency middleware.IdempotencyStore
	inbox       payments.Inbox
	catalog     catalog
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		return openMongo(ctx, cfg, logger)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return openMemory(cfg, logger), nil
	}
}

func openMemory(cfg config.Config, logger *slog.Logger) *storage {
	listings := memory.NewListingRepository()
	directory := memory.NewDirectory()
	box := memory.NewOutbox()
	factory := memory.Factory{
		ListingsRepo: listings,
		BookingRepo:  memory.NewBookingRepository(),
		Directory:    directory,
		OutboxStore:  box,
	}
	logger.Info("storage backend ready", "backend", config.BackendMemory)
	return &storage{
		factory:     factory,
		outbox:      box,
		flusher:     box,
		wake:        box.Wait(),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		inbox:       memory.NewInbox(),
		catalog:     catalog{listings: listings, profiles: directory},
	}
}

func openMongo(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	closeClient := func(ctx context.Context) error { return client.Close(ctx) }
	if err := client.EnsureIndexes(ctx); err != nil {
		_ = closeClient(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	paymentsInbox := inbox.NewStore(client.DB, cfg.KafkaConsumerGroup)
	if err := paymentsInbox.EnsureIndexes(ctx); err != nil {
		_ = closeClient(context.Background())
		return nil, err
	}
	box := mongostore.NewOutboxStore(client.DB)
	factory := mongostore.NewFactory(client.DB, box)
	logger.Info("storage backend ready", "backend", config.BackendMongo, "database", cfg.MongoDB)
	return &storage{
		factory:     factory,
		outbox:      box,
		flusher:     box,
		idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		inbox:       paymentsInbox,
		catalog: catalog{
			listings: mongostore.NewListingRepository(client.DB),
			profiles: mongostore.NewDirectory(client.DB),
		},
		checks:  map[string]obs.Check{"mongo": client.Ping},
		closers: []func(context.Context) error{closeClient},
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	pool, err := postgres.New(ctx, postgres.Config{DSN: cfg.PostgresDSN})
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	gdb, err := postgres.OpenCatalog(cfg.PostgresDSN)
	if err != nil {
		pool.Close()
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres catalog handle: %w", err)
	}
	if err := postgres.MigrateCatalog(gdb); err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("postgres catalog migrate: %w", err)
	}

	listings := postgres.NewListingRepository(gdb)
	directory := postgres.NewDirectory(gdb)
	box := postgres.NewOutboxStore(pool)
	logger.Info("storage backend ready", "backend", config.BackendPostgres)
	return &storage{
		factory:     postgres.Factory{Pool: pool, Listings: listings, Directory: directory},
		outbox:      box,
		flusher:     box,
		idempotency: postgres.NewIdempotencyStore(pool, cfg.IdempotencyTTL),
		inbox:       postgres.NewInbox(pool, cfg.KafkaConsumerGroup),
		catalog:     catalog{listings: listings, profiles: directory},
		checks: map[string]obs.Check{
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		},
		closers: []func(context.Context) error{
			func(context.Context) error { pool.Close(); return nil },
			func(context.Context) error { return sqlDB.Close() },
		},
	}, nil
}
