package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/health"
	"github.com/vladislavdragonenkov/cbs/internal/storage/memory"
	"github.com/vladislavdragonenkov/cbs/internal/storage/postgres"
	"github.com/vladislavdragonenkov/cbs/internal/storage/redisx"
)

// Dependencies собирает хранилища приложения. Конкретные реализации
// выбираются конфигурацией: PostgreSQL и Redis при наличии DSN/адреса,
// иначе in-memory.
type Dependencies struct {
	Customers    domain.CustomerRepository
	Products     domain.ProductRepository
	Orders       domain.OrderRepository
	Reservations domain.ReservationRepository
	Outbox       domain.OutboxRepository
	Timeline     domain.TimelineRepository
	Idempotency  domain.IdempotencyRepository

	// HealthChecks регистрируются на /healthz.
	HealthChecks map[string]health.CheckFunc

	closers []func() error
}

// Close освобождает все внешние подключения в обратном порядке.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

// NewDependencies инициализирует хранилища по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{HealthChecks: map[string]health.CheckFunc{}}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres storage initialized")

		deps.Customers = postgres.NewCustomerRepository(store)
		deps.Products = postgres.NewProductRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Reservations = postgres.NewReservationRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.HealthChecks["postgres"] = func() error {
			return store.Ping(context.Background())
		}
		deps.closers = append(deps.closers, store.Close)
	} else {
		logger.Info("using in-memory storage")
		deps.Customers = memory.NewCustomerRepository()
		deps.Products = memory.NewProductRepository()
		deps.Orders = memory.NewOrderRepository(deps.Customers)
		deps.Reservations = memory.NewReservationRepository(deps.Customers)
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()
	}

	if cfg.RedisAddr != "" {
		client, err := redisx.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("redis idempotency storage initialized")

		deps.Idempotency = redisx.NewIdempotencyRepository(client)
		deps.HealthChecks["redis"] = func() error {
			return client.Ping(context.Background()).Err()
		}
		deps.closers = append(deps.closers, client.Close)
	} else {
		deps.Idempotency = memory.NewIdempotencyRepository()
	}

	return deps, nil
}
