package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alatoul/ride-hailing/internal/notifications"
	"github.com/alatoul/ride-hailing/internal/rides"
	"github.com/alatoul/ride-hailing/internal/settings"
	"github.com/alatoul/ride-hailing/pkg/cache"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/config"
	"github.com/alatoul/ride-hailing/pkg/database"
	apperrors "github.com/alatoul/ride-hailing/pkg/errors"
	"github.com/alatoul/ride-hailing/pkg/eventbus"
	"github.com/alatoul/ride-hailing/pkg/health"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/alatoul/ride-hailing/pkg/middleware"
	"github.com/alatoul/ride-hailing/pkg/ratelimit"
	redisclient "github.com/alatoul/ride-hailing/pkg/redis"
	"github.com/alatoul/ride-hailing/pkg/resilience"
	"github.com/alatoul/ride-hailing/pkg/tracing"
)

const serviceName = "rides-service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, serviceName, cfg.Server.LogLevel); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	version := cfg.Server.Version
	logger.Info("Starting rides service",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := apperrors.InitSentry(cfg.Sentry, cfg.Server); err != nil {
		if errors.Is(err, apperrors.ErrSentryDisabled) {
			logger.Info("Sentry DSN not set, error tracking disabled")
		} else {
			logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
		}
	} else {
		defer apperrors.Flush(2 * time.Second)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitTracer(rootCtx, cfg.Tracing, cfg.Server, logger.Get()); err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(ctx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
		}
	}

	if err := database.Migrate(&cfg.Database); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewPostgresPool(rootCtx, &cfg.Database, cfg.Timeout.DatabaseTimeout())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	// Redis backs the ride cache, the accept lock, idempotency keys and rate
	// limiting. All of them are optional.
	var (
		redisClient *redisclient.Client
		limiter     *ratelimit.Limiter
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewRedisClient(rootCtx, &cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache and accept lock", zap.Error(err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("Failed to close redis client", zap.Error(err))
				}
			}()
		}
	}
	if redisClient != nil && cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
		logger.Info("Rate limiting enabled",
			zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
			zap.Duration("window", cfg.RateLimit.Window()),
		)
	}

	var (
		publisher eventbus.Publisher
		natsBus   *eventbus.Bus
		localBus  *eventbus.LocalBus
	)
	if cfg.NATS.Enabled {
		natsBus, err = eventbus.New(rootCtx, eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		})
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsBus.Close()
		publisher = natsBus
	} else {
		localBus = eventbus.NewLocalBus()
		publisher = localBus
		logger.Info("NATS disabled, ride events are delivered in-process")
	}

	var busBreaker *resilience.CircuitBreaker
	if cfg.Resilience.CircuitBreaker.Enabled {
		busBreaker = resilience.NewCircuitBreaker(
			resilience.SettingsFromConfig(cfg.Resilience.CircuitBreaker, "event-bus"), nil)
	}

	dispatcher := rides.NewDispatcher(publisher, busBreaker,
		cfg.Notifications.QueueSize,
		time.Duration(cfg.Notifications.PublishTimeout)*time.Second,
	)

	settingsService := settings.NewService(settings.NewRepository(db), publisher)

	var rideOpts []rides.Option
	var notifyOpts []notifications.Option
	if redisClient != nil {
		cacheManager := cache.NewManager(redisClient)
		rideOpts = append(rideOpts,
			rides.WithCache(cacheManager, time.Duration(cfg.Redis.RideCacheTTLSeconds)*time.Second),
			rides.WithAcceptLock(redisclient.NewLockStore(redisClient, "ride-accept"),
				time.Duration(cfg.Redis.AcceptLockTTLSeconds)*time.Second),
		)
		notifyOpts = append(notifyOpts, notifications.WithCache(cacheManager, 0))
	}
	ridesService := rides.NewService(rides.NewRepository(db), settingsService, dispatcher, rideOpts...)

	// Without NATS nobody else can see ride events, so the cancellation
	// notices are written from here.
	if localBus != nil {
		notifyService := notifications.NewService(notifications.NewRepository(db), notifyOpts...)
		if err := notifications.NewEventHandler(notifyService).RegisterSubscriptions(rootCtx, localBus); err != nil {
			logger.Fatal("Failed to subscribe notifications to local bus", zap.Error(err))
		}
	}

	dispatchCtx, stopDispatch := context.WithCancel(rootCtx)
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(dispatchCtx)
	}()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.Metrics(serviceName))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	healthChecks := map[string]func() error{
		"database": health.PostgresChecker(db),
	}
	if redisClient != nil {
		healthChecks["redis"] = health.RedisChecker(redisClient.Client)
	}
	if natsBus != nil {
		healthChecks["nats"] = natsBus.Ping
	}
	router.GET("/health/live", common.LivenessProbe(serviceName, version))
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.RequestTimeout(&cfg.Timeout))

	guards := []gin.HandlerFunc{middleware.RateLimit(limiter, cfg.RateLimit)}
	if redisClient != nil {
		guards = append(guards, middleware.Idempotency(redisClient))
	}
	rides.NewHandler(ridesService).RegisterRoutes(api, cfg.JWT.Secret, guards...)
	settings.NewHandler(settingsService).RegisterRoutes(api, cfg.JWT.Secret, guards...)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Requests are drained; publish whatever they queued before the bus closes.
	stopDispatch()
	select {
	case <-dispatchDone:
	case <-ctx.Done():
		logger.Warn("Timed out flushing ride events")
	}

	logger.Info("Server stopped")
}
