package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/cbs/internal/health"
	"github.com/vladislavdragonenkov/cbs/internal/httpapi"
	"github.com/vladislavdragonenkov/cbs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/cbs/internal/metrics"
	"github.com/vladislavdragonenkov/cbs/internal/service/idempotency"
	"github.com/vladislavdragonenkov/cbs/internal/service/orders"
	"github.com/vladislavdragonenkov/cbs/internal/service/outbox"
	"github.com/vladislavdragonenkov/cbs/internal/service/reservations"
	"github.com/vladislavdragonenkov/cbs/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает все подсистемы и блокируется до отмены контекста
// или фатальной ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	commerceMetrics := metrics.NewCommerceMetrics()

	orderService := orders.NewService(
		deps.Orders,
		deps.Products,
		deps.Timeline,
		deps.Outbox,
		cfg.Money,
		logger.WithField("layer", "orders"),
	)
	reservationService := reservations.NewService(
		deps.Reservations,
		deps.Outbox,
		logger.WithField("layer", "reservations"),
	)

	// Redis истекает idempotency ключи сам; для остальных хранилищ
	// просроченные записи убирает фоновый воркер.
	if store, ok := deps.Idempotency.(idempotency.ExpiredStore); ok {
		cleaner := idempotency.NewCleanupWorker(store,
			idempotency.WithLogger(logger.WithField("layer", "idempotency-cleanup")))
		go cleaner.Run(ctx)
	}

	// Outbox-воркер имеет смысл только при настроенном Kafka: без
	// брокера записи так и остаются pending до следующего запуска.
	if kafkaProducer != nil {
		worker := outbox.NewWorker(
			deps.Outbox,
			kafka.NewOutboxPublisher(kafkaProducer),
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(kafkaProducer)),
		)
		go worker.Run(ctx)
	}

	server := httpapi.NewServer(httpapi.Deps{
		Customers:    deps.Customers,
		Products:     deps.Products,
		Orders:       orderService,
		Reservations: reservationService,
		Idempotency:  deps.Idempotency,
		Metrics:      commerceMetrics,
		Logger:       logger.WithField("layer", "http"),
		APIKey:       cfg.APIKey,
	})

	v, _, _ := version.Info()
	healthHandler := healthcheck.NewHandler(v)
	for name, check := range deps.HealthChecks {
		healthHandler.Register(name, check)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus
// вместе с health-чеками.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
