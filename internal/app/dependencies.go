package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shop/internal/storage/rediscache"
)

// runtimeDependencies: репозитории выбранного хранилища.
type runtimeDependencies struct {
	users           domain.UserRepository
	sellers         domain.SellerRepository
	products        domain.ProductRepository
	orders          domain.OrderRepository
	orderTx         domain.OrderTransactor
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			users:           memory.NewUserRepository(store),
			sellers:         memory.NewSellerRepository(store),
			products:        memory.NewProductRepository(store),
			orders:          memory.NewOrderRepository(store),
			orderTx:         memory.NewOrderTransactor(store),
			outboxRepo:      memory.NewOutboxRepository(store),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func(context.Context) error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn is required for storage driver %q", StorageDriverPostgres)
		}

		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}

		logger.Info("using postgres storage")
		return &runtimeDependencies{
			users:           postgres.NewUserRepository(store),
			sellers:         postgres.NewSellerRepository(store),
			products:        postgres.NewProductRepository(store),
			orders:          postgres.NewOrderRepository(store),
			orderTx:         postgres.NewOrderTransactor(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewSimpleChecker("storage", store.Ping),
			closeFn:         store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initCatalogCache подключает Redis, если он настроен. Недоступный Redis не
// останавливает запуск: сервис работает без кэша.
func initCatalogCache(ctx context.Context, cfg Config, logger *log.Entry) *rediscache.Cache {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	cache, err := rediscache.Open(ctx, rediscache.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		logger.WithError(err).Warn("redis is unavailable, continuing without catalog cache")
		return nil
	}

	logger.WithField("addr", addr).Info("catalog cache initialized")
	return cache
}
