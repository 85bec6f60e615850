package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	httpsvc "github.com/vladislavdragonenkov/shop/internal/service/http"
	"github.com/vladislavdragonenkov/shop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/service/orders"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/service/users"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

const (
	shutdownTimeout    = 5 * time.Second
	readHeaderTimeout  = 5 * time.Second
	cacheRedeleteDelay = 500 * time.Millisecond
)

// Run поднимает HTTP API, ops-эндпоинты, gRPC health и фоновые воркеры
// и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithField("version", version.String()).Info("starting shop api")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn == nil {
			return
		}
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	cache := initCatalogCache(ctx, cfg, logger)
	defer func() {
		if err := cache.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}()
	var catalogCache domain.CatalogCache
	if cache != nil {
		catalogCache = cache
	}

	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		kafkaProducer = nil
	}
	defer closeKafkaProducer(kafkaProducer, logger)

	userService := users.NewService(deps.users, users.WithLogger(logger.WithField("layer", "users")))
	catalogService := catalog.NewService(deps.sellers, deps.products,
		catalog.WithCache(catalogCache),
		catalog.WithLogger(logger.WithField("layer", "catalog")),
	)
	orderService := orders.NewService(deps.orders, deps.orderTx,
		orders.WithLogger(logger.WithField("layer", "orders")),
		orders.WithMetrics(metrics.NewOrderMetrics()),
		orders.WithCache(catalogCache),
		orders.WithCacheRedelete(cacheRedeleteDelay),
		orders.WithOutboxEvents(kafkaProducer != nil),
	)

	guard := idempotency.NewGuard(deps.idempotencyRepo,
		idempotency.WithTTL(cfg.IdempotencyTTL),
		idempotency.WithGuardLogger(logger.WithField("layer", "idempotency")),
	)
	api := httpsvc.NewServer(userService, catalogService, orderService,
		httpsvc.WithLogger(logger.WithField("layer", "http")),
		httpsvc.WithMetrics(metrics.NewHTTPMetrics()),
		httpsvc.WithIdempotency(guard),
		httpsvc.WithRequestTimeout(cfg.RequestTimeout),
	)

	outboxCancel, outboxDone := startOutboxWorker(ctx, cfg, deps.outboxRepo, kafkaProducer, logger)
	cleanupCancel, cleanupDone := startIdempotencyCleanup(ctx, cfg, deps.idempotencyRepo, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if cache != nil {
		healthHandler.RegisterChecker("cache", healthcheck.NewOptionalChecker("cache", cache.Ping))
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 2)

	grpcServer, grpcHealth, err := startGRPCServer(cfg.GRPCAddr, logger, errCh)
	if err != nil {
		stopWorker(outboxCancel, outboxDone, logger)
		stopWorker(cleanupCancel, cleanupDone, logger)
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		stopWorker(outboxCancel, outboxDone, logger)
		stopWorker(cleanupCancel, cleanupDone, logger)
		shutdownGRPC(grpcServer, grpcHealth, logger)
		shutdownHTTP(metricsSrv, logger)
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	apiSrv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	shutdownHTTP(apiSrv, logger)
	shutdownGRPC(grpcServer, grpcHealth, logger)
	stopWorker(outboxCancel, outboxDone, logger)
	stopWorker(cleanupCancel, cleanupDone, logger)
	shutdownHTTP(metricsSrv, logger)
	return runErr
}

// startOutboxWorker запускает публикацию событий из outbox в Kafka.
// Без producer воркер не запускается и возвращает nil.
func startOutboxWorker(ctx context.Context, cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) (context.CancelFunc, <-chan struct{}) {
	if producer == nil {
		logger.Info("kafka is not configured, outbox worker disabled")
		return nil, nil
	}

	worker := outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	return runWorker(ctx, worker.Run)
}

func startIdempotencyCleanup(ctx context.Context, cfg Config, repo domain.IdempotencyRepository, logger *log.Entry) (context.CancelFunc, <-chan struct{}) {
	worker := idempotency.NewCleanupWorker(repo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	return runWorker(ctx, worker.Run)
}

func runWorker(ctx context.Context, run func(context.Context)) (context.CancelFunc, <-chan struct{}) {
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(workerCtx)
	}()
	return cancel, done
}

// stopWorker отменяет воркер и ждёт его завершения не дольше shutdownTimeout.
func stopWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("background worker did not stop in time")
	}
}

// startGRPCServer поднимает gRPC health-сервис для оркестраторов.
// Пустой addr отключает сервер.
func startGRPCServer(addr string, logger *log.Entry, errCh chan<- error) (*grpc.Server, *health.Server, error) {
	if addr == "" {
		return nil, nil, nil
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen grpc %s: %w", addr, err)
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)

	go func() {
		logger.Infof("gRPC health сервер слушает %s", lis.Addr())
		errCh <- server.Serve(lis)
	}()
	return server, healthServer, nil
}

func shutdownGRPC(server *grpc.Server, healthServer *health.Server, logger *log.Entry) {
	if server == nil {
		return
	}
	if healthServer != nil {
		healthServer.Shutdown()
	}

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает ops-эндпоинты: /metrics, /healthz, /livez, /readyz.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
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
