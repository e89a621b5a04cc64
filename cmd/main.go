package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crabcut/shortener/internal/cache"
	"github.com/crabcut/shortener/internal/config"
	"github.com/crabcut/shortener/internal/database"
	"github.com/crabcut/shortener/internal/events"
	"github.com/crabcut/shortener/internal/handler"
	"github.com/crabcut/shortener/internal/repository"
	"github.com/crabcut/shortener/internal/service"
	"github.com/crabcut/shortener/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName))

	// The cache is a fast path only; the service runs without it.
	var redirectCache cache.Cache
	var redisClient *cache.RedisClient

	redisClient, err = cache.NewRedisClient(cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
	})
	if err != nil {
		logger.Warn("failed to connect to Redis, running without cache", zap.Error(err))
		redisClient = nil
		redirectCache = cache.NewNullCache()
	} else {
		defer redisClient.Close()
		redirectCache = redisClient
		logger.Info("connected to Redis", zap.String("host", cfg.Redis.Host))
	}

	// Telemetry is supplementary; a missing bus degrades to a no-op publisher.
	var publisher events.Publisher
	natsPublisher, err := events.NewNATSPublisher(events.NATSConfig{
		URL:     cfg.NATS.URL,
		Subject: cfg.NATS.Subject,
	}, logger)
	if err != nil {
		logger.Warn("failed to connect to NATS, click events disabled", zap.Error(err))
		publisher = events.NewNopPublisher()
	} else {
		publisher = natsPublisher
		defer natsPublisher.Close()
		logger.Info("connected to NATS", zap.String("url", cfg.NATS.URL))
	}

	urlRepo := repository.NewPostgresURLRepository(db)

	clickWorker := worker.NewClickWorker(
		urlRepo,
		redirectCache,
		publisher,
		cfg.GetCacheTTL(),
		cfg.App.ClickQueueSize,
		logger,
	)
	clickWorker.Start(cfg.App.ClickWorkers)

	urlService := service.NewURLService(
		urlRepo,
		redirectCache,
		clickWorker,
		cfg.GetBaseURL(),
		cfg.GetCacheTTL(),
		logger,
	)
	urlHandler := handler.NewURLHandler(urlService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.GetAllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if redisClient != nil {
		router.Use(redisRateLimitMiddleware(redisClient, 100, time.Minute, logger))
	} else {
		router.Use(inMemoryRateLimitMiddleware(100, time.Minute))
	}

	router.GET("/health", healthHandler(db, redirectCache))
	router.POST("/create", urlHandler.CreateURL)
	router.GET("/:shortCode", urlHandler.RedirectURL)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.GetServerAddress()))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	// Drain queued click tasks before closing the bus and pools.
	clickWorker.Shutdown()

	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = lvl

	return zapCfg.Build()
}

func healthHandler(db *sql.DB, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		response := gin.H{
			"status": "healthy",
			"services": gin.H{
				"database": "healthy",
				"cache":    "healthy",
			},
		}

		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		if err := database.HealthCheck(checkCtx, db); err != nil {
			response["services"].(gin.H)["database"] = "unhealthy"
			response["status"] = "degraded"
		}

		if err := c.HealthCheck(checkCtx); err != nil {
			response["services"].(gin.H)["cache"] = "unhealthy"
			response["status"] = "degraded"
		}

		statusCode := http.StatusOK
		if response["status"] == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		ctx.JSON(statusCode, response)
	}
}

// redisRateLimitMiddleware counts requests per client IP in Redis. A Redis
// failure lets the request through rather than failing it.
func redisRateLimitMiddleware(redis *cache.RedisClient, maxRequests int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()
		key := cache.CacheKeys.RateLimit(clientIP)

		count, err := redis.IncrementRateLimit(ctx, key, window)
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// inMemoryRateLimitMiddleware is the fallback when Redis is unavailable.
// The window map is shared by every in-flight request, so access is
// serialized; the lock is released before the handler chain runs.
func inMemoryRateLimitMiddleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	requests := make(map[string][]time.Time)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		now := time.Now()

		mu.Lock()

		if times, exists := requests[clientIP]; exists {
			validTimes := []time.Time{}
			for _, t := range times {
				if now.Sub(t) < window {
					validTimes = append(validTimes, t)
				}
			}
			requests[clientIP] = validTimes
		}

		if len(requests[clientIP]) >= maxRequests {
			mu.Unlock()

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
			})
			c.Abort()
			return
		}

		requests[clientIP] = append(requests[clientIP], now)
		mu.Unlock()

		c.Next()
	}
}
