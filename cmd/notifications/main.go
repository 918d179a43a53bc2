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
	"github.com/alatoul/ride-hailing/pkg/tracing"
)

const serviceName = "notifications-service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := logger.Init(cfg.Server.Environment, serviceName, cfg.Server.LogLevel); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	version := cfg.Server.Version
	log.Info("Starting notifications service", zap.String("version", version))

	if err := apperrors.InitSentry(cfg.Sentry, cfg.Server); err != nil {
		if !errors.Is(err, apperrors.ErrSentryDisabled) {
			log.Warn("Failed to initialize Sentry", zap.Error(err))
		}
	} else {
		defer apperrors.Flush(2 * time.Second)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitTracer(rootCtx, cfg.Tracing, cfg.Server, log); err != nil {
			log.Warn("Failed to initialize tracer", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.Shutdown(ctx)
			}()
		}
	}

	if err := database.Migrate(&cfg.Database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewPostgresPool(rootCtx, &cfg.Database, cfg.Timeout.DatabaseTimeout())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	log.Info("Connected to database")

	var (
		redisClient *redisclient.Client
		limiter     *ratelimit.Limiter
		opts        []notifications.Option
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewRedisClient(rootCtx, &cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, unread counts will not be cached", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			opts = append(opts, notifications.WithCache(cache.NewManager(redisClient), 0))
			if cfg.RateLimit.Enabled {
				limiter = ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
			}
		}
	}

	service := notifications.NewService(notifications.NewRepository(db), opts...)

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.New(rootCtx, eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		})
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()

		if err := notifications.NewEventHandler(service).RegisterSubscriptions(rootCtx, bus); err != nil {
			log.Fatal("Failed to subscribe to ride events", zap.Error(err))
		}
	} else {
		log.Warn("NATS disabled, ride cancellation notices are written by the rides service")
	}

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

	checks := map[string]func() error{
		"database": health.PostgresChecker(db),
	}
	if redisClient != nil {
		checks["redis"] = health.RedisChecker(redisClient.Client)
	}
	if bus != nil {
		checks["nats"] = bus.Ping
	}
	router.GET("/health/live", common.LivenessProbe(serviceName, version))
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.RequestTimeout(&cfg.Timeout))
	notifications.NewHandler(service).RegisterRoutes(api, cfg.JWT.Secret, middleware.RateLimit(limiter, cfg.RateLimit))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
