package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/trip-quote/internal/fare"
	"github.com/richxcame/trip-quote/internal/geocoding"
	"github.com/richxcame/trip-quote/internal/quote"
	"github.com/richxcame/trip-quote/internal/routing"
	"github.com/richxcame/trip-quote/pkg/common"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/errors"
	"github.com/richxcame/trip-quote/pkg/eventbus"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/richxcame/trip-quote/pkg/middleware"
	"github.com/richxcame/trip-quote/pkg/ratelimit"
	redisClient "github.com/richxcame/trip-quote/pkg/redis"
	"github.com/richxcame/trip-quote/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName = "quote-api"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	defer cfg.Close()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting quote service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("geocoding_provider", cfg.Geocoding.Provider),
		zap.String("routing_provider", cfg.Routing.Provider),
		zap.String("fare_strategy", cfg.Fare.Strategy),
	)

	// Initialize Sentry for error tracking
	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	// Initialize OpenTelemetry tracer
	tp, err := tracing.InitTracer(tracing.FromConfig(cfg, version), logger.Get())
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown tracer", zap.Error(err))
			}
		}()
		logger.Info("OpenTelemetry tracing initialized successfully")
	}

	healthChecks := make(map[string]common.HealthCheckFunc)

	var limiter *ratelimit.Limiter
	if cfg.Redis.Enabled {
		redis, err := redisClient.NewRedisClient(rootCtx, &cfg.Redis, cfg.Timeout)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()
		logger.Info("Connected to Redis")

		healthChecks["redis"] = redis.HealthCheck
		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewLimiter(redis.Client, cfg.RateLimit)
			logger.Info("Rate limiting enabled")
		}
	} else if cfg.RateLimit.Enabled {
		logger.Warn("Rate limiting requires Redis, continuing without it")
	}

	var publisher eventbus.Publisher
	if cfg.EventBus.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.EventBus.URL
		busCfg.Name = serviceName
		busCfg.StreamName = cfg.EventBus.StreamName
		bus, err := eventbus.New(rootCtx, busCfg)
		if err != nil {
			logger.Warn("Failed to connect to NATS, quote events disabled", zap.Error(err))
		} else {
			defer bus.Close()
			publisher = bus
			healthChecks["nats"] = bus.HealthCheck
			logger.Info("Quote events enabled", zap.String("stream", busCfg.StreamName))
		}
	}

	geocoder, err := geocoding.New(cfg)
	if err != nil {
		logger.Fatal("Failed to create geocoder", zap.Error(err))
	}
	router, err := routing.New(cfg)
	if err != nil {
		logger.Fatal("Failed to create router", zap.Error(err))
	}
	routeOpts, err := routing.OptionsFromConfig(cfg.Routing)
	if err != nil {
		logger.Fatal("Failed to load routing custom model", zap.Error(err))
	}
	estimator, err := fare.NewEstimator(cfg)
	if err != nil {
		logger.Fatal("Failed to create fare estimator", zap.Error(err))
	}

	healthChecks["geocoding"] = geocoder.HealthCheck
	healthChecks["routing"] = router.HealthCheck
	if checker, ok := estimator.(interface{ HealthCheck(context.Context) error }); ok {
		healthChecks["fare"] = checker.HealthCheck
	}

	registry := quote.NewRegistry(quote.Dependencies{
		Geocoder:     geocoder,
		Router:       router,
		Estimator:    estimator,
		RouteOptions: routeOpts,
		Publisher:    publisher,
	}, quote.RegistryConfig{
		IdleTTL:       cfg.Session.IdleTTL(),
		MaxSessions:   cfg.Session.MaxSessions,
		SweepInterval: time.Minute,
	})
	registry.Start()
	defer registry.Stop()

	handler := quote.NewHandler(registry)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(common.NoRouteHandler())
	engine.NoMethod(common.NoMethodHandler())
	engine.Use(middleware.RecoveryWithSentry()) // Custom recovery with Sentry
	engine.Use(middleware.SentryMiddleware())   // Sentry integration
	engine.Use(middleware.CorrelationID())
	engine.Use(middleware.Session(cfg.Session.Header))
	engine.Use(middleware.RequestTimeout(&cfg.Timeout))
	engine.Use(middleware.RequestLogger(serviceName))
	engine.Use(middleware.CORS(cfg.Server, cfg.Session.Header))
	engine.Use(middleware.Metrics(serviceName))
	if tp != nil {
		engine.Use(middleware.TracingMiddleware(serviceName))
	}
	if limiter != nil {
		engine.Use(middleware.RateLimit(limiter, cfg.RateLimit))
	}

	// Add Sentry error handler (should be near the end of middleware chain)
	engine.Use(middleware.ErrorHandler())

	// Health check endpoints
	engine.GET("/healthz", common.HealthCheck(serviceName, version))
	engine.GET("/health/live", common.LivenessProbe(serviceName, version))
	engine.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	engine.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(engine.Group("/api/v1"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
