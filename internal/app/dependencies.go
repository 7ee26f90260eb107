package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/address"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/flags"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// runtimeDependencies: хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	uow             domain.UnitOfWork
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	checkers        map[string]healthcheck.Checker
	closers         []func() error
}

func (d *runtimeDependencies) close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает хранилище и хранилище ключей идемпотентности.
// При ошибке всё уже открытое закрывается.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}

	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		deps.uow = store
		deps.outboxRepo = store.Outbox()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx); err != nil {
				_ = deps.close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		deps.uow = store
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.checkers["postgres"] = healthcheck.NewPingChecker("postgres", 0, store.Ping)
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.IdempotencyStore)) {
	case "", IdempotencyStoreStorage:
	case IdempotencyStoreRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			_ = deps.close()
			return nil, errors.New("redis url is required for redis idempotency store")
		}
		client, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			_ = deps.close()
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		deps.idempotencyRepo = redisstore.NewIdempotencyRepository(client)
		deps.checkers["redis"] = healthcheck.NewPingChecker("redis", 0, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("using redis idempotency store")
	default:
		_ = deps.close()
		return nil, fmt.Errorf("unsupported idempotency store %q", cfg.IdempotencyStore)
	}

	return deps, nil
}

// newStoreService собирает сервисы ядра поверх выбранного хранилища.
func newStoreService(deps *runtimeDependencies, cfg Config, m *metrics.StoreMetrics, logger *log.Entry) *grpcsvc.StoreService {
	component := func(name string) *log.Entry {
		return logger.WithField("component", name)
	}

	g := guard.New(deps.uow, component("guard"), m)
	coord := flags.NewCoordinator(g, component("flags"), m)
	reader := cart.NewReader(deps.uow, component("cart-reader"), m)

	return grpcsvc.NewStoreService(grpcsvc.Dependencies{
		CartReader:  reader,
		Carts:       cart.NewService(deps.uow, reader, component("cart-service"), m),
		Checkout:    checkout.NewCoordinator(g, reader, component("checkout"), m),
		Lifecycle:   lifecycle.NewMachine(g, component("order-lifecycle"), m),
		Orders:      orders.NewQuery(g),
		Addresses:   address.NewService(g, coord, component("address-service")),
		Images:      catalog.NewImageService(g, coord, component("image-service")),
		Idempotency: deps.idempotencyRepo,
	}, component("store-service"), grpcsvc.WithIdempotencyTTL(cfg.IdempotencyTTL))
}
