package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/duynhne/profile-service/config"
	database "github.com/duynhne/profile-service/internal/core"
	"github.com/duynhne/profile-service/internal/core/cache"
	"github.com/duynhne/profile-service/internal/core/media"
	"github.com/duynhne/profile-service/internal/core/token"
	logicv1 "github.com/duynhne/profile-service/internal/logic/v1"
	v1 "github.com/duynhne/profile-service/internal/web/v1"
	"github.com/duynhne/profile-service/middleware"
)

func main() {
	// Load configuration from environment variables (with .env file support for local dev)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	// Initialize structured logger
	logger, err := middleware.NewLogger(cfg.Logging)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("Service starting",
		zap.String("service", cfg.Service.Name),
		zap.String("version", cfg.Service.Version),
		zap.String("env", cfg.Service.Env),
		zap.String("port", cfg.Service.Port),
	)

	// Initialize OpenTelemetry tracing with centralized config
	if cfg.Tracing.Enabled {
		if _, err := middleware.InitTracing(cfg); err != nil {
			logger.Warn("Failed to initialize tracing", zap.Error(err))
		} else {
			logger.Info("Tracing initialized",
				zap.String("endpoint", cfg.Tracing.Endpoint),
				zap.Float64("sample_rate", cfg.Tracing.SampleRate),
			)
		}
	} else {
		logger.Info("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg.Profiling, logger); err != nil {
			logger.Warn("Failed to initialize profiling", zap.Error(err))
		} else {
			logger.Info("Profiling initialized",
				zap.String("endpoint", cfg.Profiling.Endpoint),
			)
			defer middleware.StopProfiling()
		}
	} else {
		logger.Info("Profiling disabled (PROFILING_ENABLED=false)")
	}

	// Identity/profile store (pgx pool or SQLite file)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	store, err := database.OpenStore(startupCtx, cfg.Database, cfg.Service.Name)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	logger.Info("Store ready", zap.String("driver", cfg.Database.Driver))

	photoStorage, err := media.NewStorage(cfg.Media)
	if err != nil {
		logger.Fatal("Failed to prepare media storage", zap.Error(err))
	}

	// Redis is optional: without it refresh tokens are not single-use and /login is not rate limited
	var (
		redisCache  *cache.Cache
		tokenOpts   []token.Option
		loginGuards []gin.HandlerFunc
	)
	if cfg.Redis.Enabled() {
		redisCache, err = cache.New(startupCtx, cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}

		tokenOpts = append(tokenOpts, token.WithDenylist(token.NewCacheDenylist(redisCache)))
		loginGuards = append(loginGuards, middleware.RateLimitMiddleware(redisCache, middleware.RateLimitOptions{
			Namespace:     "login_attempts",
			Limit:         cfg.Redis.LoginRateLimit,
			Window:        cfg.Redis.LoginRateWindow,
			BlockDuration: cfg.Redis.LoginBlockDuration,
			OnLimited:     func() { middleware.RecordLogin(middleware.OutcomeRateLimited) },
		}, logger))
		logger.Info("Redis connected", zap.Strings("addrs", cfg.Redis.Addrs))
	} else {
		logger.Info("Redis disabled (REDIS_ADDRS empty)")
	}

	tokens := token.NewService(cfg.JWT, tokenOpts...)
	identities := logicv1.NewIdentityService(store, logger)
	handler := v1.NewHandler(
		logicv1.NewAuthService(identities, tokens, logger),
		logicv1.NewProfileService(store, photoStorage, logger),
		logicv1.NewPhotoService(store, photoStorage, cfg.Media.MaxUploadBytes, cfg.Media.MaxDimension, logger),
		v1.Options{
			Version:        cfg.Service.Version,
			BasePath:       cfg.Service.BasePath,
			MaxUploadBytes: cfg.Media.MaxUploadBytes,
		},
	)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.Media.MaxUploadBytes

	var isShuttingDown atomic.Bool

	// Tracing middleware (must be first for context propagation)
	r.Use(middleware.TracingMiddleware(photoStorage.URLPrefix()))

	// Logging middleware (must be before Prometheus middleware)
	r.Use(middleware.LoggingMiddleware(logger))

	// Prometheus middleware
	if cfg.Metrics.Enabled {
		r.Use(middleware.PrometheusMiddleware())
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Readiness check
	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown,
	// or while the store or Redis is unreachable.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logger.Warn("Readiness: store unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unavailable"})
			return
		}
		if redisCache != nil {
			if err := redisCache.Ping(ctx); err != nil {
				logger.Warn("Readiness: redis unreachable", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis_unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Uploaded photos
	if cfg.Media.Serve {
		r.Static(photoStorage.URLPrefix(), photoStorage.Root())
		logger.Info("Serving media",
			zap.String("prefix", photoStorage.URLPrefix()),
			zap.String("root", photoStorage.Root()),
		)
	}

	handler.RegisterRoutes(r, middleware.AuthMiddleware(tokens, identities, logger), loginGuards...)

	// CORS for the browser frontend
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.TraceIDHeader, middleware.TraceParentHeader},
		ExposedHeaders:   []string{middleware.TraceIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           corsHandler.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting profile service",
			zap.String("port", cfg.Service.Port),
			zap.String("base_path", handler.BasePath()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown - modern signal handling with context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Fail readiness first and wait for propagation
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		logger.Info("Readiness drain delay started", zap.Duration("delay", drainDelay))
		time.Sleep(drainDelay)
		logger.Info("Readiness drain delay completed", zap.Duration("delay", drainDelay))
	}

	// Shutdown context with configurable timeout
	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server...", zap.Duration("timeout", shutdownTimeout))

	// Explicit cleanup sequence: HTTP Server → Redis → Store → Tracer

	// 1. Shutdown HTTP server (stop accepting new connections, wait for in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server shutdown complete")
	}

	// 2. Close Redis
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Warn("Redis close error", zap.Error(err))
		}
	}

	// 3. Close the store
	store.Close()
	logger.Info("Store closed")

	// 4. Shutdown tracer (flush pending spans); no-op when tracing never started
	if err := middleware.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown error", zap.Error(err))
	} else if cfg.Tracing.Enabled {
		logger.Info("Tracer shutdown complete")
	}

	logger.Info("Graceful shutdown complete")
}
