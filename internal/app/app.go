package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/auth"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/config"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/event"
	handler "github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/handler/http"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository/postgres"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository/redis"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/sender/loops"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/service"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/database"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/health"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/httpclient"
	pkgkafka "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/kafka"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/middleware"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/tracing"
)

const serviceName = "order-fulfillment"

// App wires together all dependencies and runs the order service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	orders         *service.OrderService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Redis and Kafka are optional and only connected when enabled.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// PostgreSQL holds orders, carts, coupons, stock and kit registrations.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(config.Millis(cfg.SlowQueryThresholdMs), logger)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	deps := service.OrderServiceDeps{
		Verifier:       auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer),
		IdempotencyTTL: time.Duration(cfg.IdempotencyTTLMinutes) * time.Minute,
		StepTimeout:    config.Millis(cfg.StepTimeoutMs),
		Logger:         logger,
	}

	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		deps.Idempotency = redis.NewIdempotencyStore(client)
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("idempotency store enabled", slog.String("addr", cfg.Redis().Addr()))
	}

	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.producer = producer
		deps.Events = event.NewProducer(producer, logger)
		healthHandler.RegisterOptional("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Email API client behind a circuit breaker.
	baseClient := httpclient.New(httpclient.DefaultConfig())
	cbCfg := cfg.CircuitBreaker("loops")
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger)
	emailSender := loops.NewClient(cbClient, cfg.LoopsAPIURL, cfg.LoopsAPIKey)
	if !cfg.NotificationsEnabled() {
		logger.Warn("LOOPS_API_KEY not set, order notifications disabled")
	}

	orderRepo := postgres.NewOrderRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	inventoryRepo := postgres.NewInventoryRepository(pool)
	kitRepo := postgres.NewKitRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)

	stepTimeout := config.Millis(cfg.StepTimeoutMs)
	deps.Writer = service.NewOrderWriter(orderRepo, service.OrderWriterConfig{
		MaxAttempts:   cfg.OrderMaxAttempts,
		InsertTimeout: config.Millis(cfg.OrderInsertTimeoutMs),
		ItemsTimeout:  config.Millis(cfg.OrderItemsTimeoutMs),
		Currency:      cfg.Currency,
	}, logger)
	deps.Coupons = service.NewCouponLedger(couponRepo, stepTimeout)
	deps.Inventory = service.NewInventoryDecrementer(inventoryRepo, stepTimeout)
	deps.Kits = service.NewKitProvisioner(kitRepo, stepTimeout)
	deps.Cart = service.NewCartReconciler(service.DefaultCartClearers(cartRepo), stepTimeout, logger)
	deps.Notifications = service.NewNotificationDispatcher(emailSender, service.NotificationConfig{
		Enabled:            cfg.NotificationsEnabled(),
		CustomerTemplateID: cfg.LoopsCustomerTemplateID,
		AdminTemplateID:    cfg.LoopsAdminTemplateID,
		AdminEmail:         cfg.AdminNotificationEmail,
		Timeout:            config.Millis(cfg.NotificationTimeoutMs),
	}, logger)

	a.orders = service.NewOrderService(deps)

	orderHandler := handler.NewOrderHandler(a.orders, config.Millis(cfg.RequestTimeoutMs), logger)
	router := handler.NewRouter(orderHandler, healthHandler, middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	// WriteTimeout leaves room for the request deadline plus response encoding.
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      config.Millis(cfg.RequestTimeoutMs) + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Detached notification sends
// 3. Tracer (flush pending spans)
// 4. Kafka producer, Redis and the PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error
	budget := time.Duration(a.cfg.ShutdownTimeoutSecs) * time.Second

	httpCtx, httpCancel := context.WithTimeout(context.Background(), budget)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), config.Millis(a.cfg.NotificationTimeoutMs))
	defer notifyCancel()
	if err := a.orders.WaitForNotifications(notifyCtx); err != nil {
		a.logger.Warn("notification sends still running at shutdown", slog.String("error", err.Error()))
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.close()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) close() []error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}
