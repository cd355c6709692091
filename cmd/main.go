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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"checkout-service/internal/cache"
	"checkout-service/internal/clients"
	"checkout-service/internal/config"
	"checkout-service/internal/events"
	"checkout-service/internal/gateway"
	"checkout-service/internal/handlers"
	"checkout-service/internal/middleware"
	"checkout-service/internal/repository"
	"checkout-service/internal/sdk"
	"checkout-service/internal/services"
	"checkout-service/internal/subscribers"
)

// Redirect records older than this are pruned.
const redirectRetention = 30 * 24 * time.Hour

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.IsProduction() {
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logger).WithField("service", "checkout-service")

	// Redis settings cache (optional - graceful degradation if Redis unavailable)
	redisClient := connectRedis(cfg.RedisURL, log)
	settingsCache := cache.NewSettingsCache(redisClient, cfg.SettingsCacheTTL, log)
	defer settingsCache.Close()

	// Redirect ledger: postgres when configured, in-memory otherwise
	var ledger repository.RedirectLedger = repository.NewMemoryLedger()
	var redirectRepo *repository.RedirectRepository
	if cfg.DatabaseURL != "" {
		db, err := connectDatabase(cfg.DatabaseURL, cfg.IsProduction())
		if err != nil {
			log.WithError(err).Warn("Continuing with in-memory redirect ledger")
		} else {
			redirectRepo = repository.NewRedirectRepository(db)
			if err := redirectRepo.Migrate(); err != nil {
				log.WithError(err).Warn("Redirect ledger migration failed")
			}
			ledger = redirectRepo
			log.Info("✓ Redirect ledger backed by postgres")
		}
	} else {
		log.Info("DATABASE_URL not configured, redirect ledger kept in memory")
	}

	// NATS JetStream for checkout events and settings invalidation
	publisher := events.NewNoopPublisher(log)
	var configSubscriber *subscribers.PaymentConfigSubscriber
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewPublisher(cfg.NATSURL, cfg.StoreTenantID, logger)
		if err != nil {
			log.WithError(err).Warn("Checkout events won't be published")
		} else {
			publisher = natsPublisher
			log.Info("✓ Connected to NATS for checkout events")
		}

		configSubscriber, err = subscribers.NewPaymentConfigSubscriber(cfg.NATSURL, settingsCache, subscribers.StoreBinding{
			TenantID: cfg.StoreTenantID,
			StoreKey: cfg.StorePublicKey,
		}, logger)
		if err != nil {
			log.WithError(err).Warn("Payment config subscriber not created")
		} else if err := configSubscriber.Start(context.Background()); err != nil {
			log.WithError(err).Warn("Payment config subscriber failed to start")
			configSubscriber.Stop()
			configSubscriber = nil
		}
	} else {
		log.Info("NATS_URL not configured, checkout events disabled")
	}
	defer publisher.Close()

	// Store and vault clients
	cartClient := clients.NewCartClient(clients.CartClientConfig{
		BaseURL:   cfg.StoreAPIURL,
		PublicKey: cfg.StorePublicKey,
		Timeout:   cfg.HTTPTimeout,
		Cache:     settingsCache,
	}, log)
	vaultClient := clients.NewVaultClient(clients.VaultClientConfig{
		BaseURL:   cfg.VaultAPIURL,
		PublicKey: cfg.StorePublicKey,
		Timeout:   2 * cfg.HTTPTimeout,
	}, log)

	// Checkout sessions
	registry := gateway.DefaultRegistry()
	sessions := services.NewSessionStore(services.SessionConfig{
		Backend:        services.NewClientBackend(cartClient, vaultClient),
		Registry:       registry,
		Ledger:         ledger,
		Publisher:      publisher,
		StripeBackends: sdk.NewStripeBackends(cfg.StripeAPIURL),
		SettleDelay:    cfg.ScriptSettleDelay,
		TTL:            cfg.SessionTTL,
		Logger:         log,
	})
	defer sessions.Close()

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	if redirectRepo != nil {
		go pruneRedirects(pruneCtx, redirectRepo, log)
	}

	// Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	rateLimits := middleware.NewCheckoutRateLimits()
	defer rateLimits.Stop()
	router := setupRouter(cfg, handlers.NewCheckoutHandler(sessions, registry), rateLimits, publisher, settingsCache)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Infof("Checkout service starting on port %s (env: %s)", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down checkout service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if configSubscriber != nil {
		configSubscriber.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Checkout service stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable
func connectRedis(redisURL string, log *logrus.Entry) *redis.Client {
	if redisURL == "" {
		log.Info("REDIS_URL not configured, settings caching disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithError(err).Warn("Failed to parse Redis URL, continuing without caching")
		return nil
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, continuing without caching")
		_ = client.Close()
		return nil
	}

	log.Info("✓ Connected to Redis for settings caching")
	return client
}

// connectDatabase establishes a connection to the database
func connectDatabase(databaseURL string, production bool) (*gorm.DB, error) {
	logLevel := gormlogger.Info
	if production {
		logLevel = gormlogger.Silent
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// pruneRedirects drops expired redirect records once a day
func pruneRedirects(ctx context.Context, repo *repository.RedirectRepository, log *logrus.Entry) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.DeleteOlderThan(ctx, time.Now().Add(-redirectRetention))
			if err != nil {
				log.WithError(err).Warn("Failed to prune redirect records")
				continue
			}
			log.WithField("removed", removed).Debug("Pruned redirect records")
		}
	}
}

// setupRouter configures the HTTP router
func setupRouter(cfg *config.Config, checkoutHandler *handlers.CheckoutHandler, rateLimits *middleware.CheckoutRateLimits, publisher *events.Publisher, settingsCache *cache.SettingsCache) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// Security headers middleware
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 && !cfg.IsProduction() {
		origins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}
	router.Use(middleware.CORS(origins))
	router.Use(middleware.RequestID())
	router.Use(middleware.ValidateRequest())

	// Health check (no rate limiting)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "checkout-service",
			"nats":    publisher.IsConnected(),
			"redis":   settingsCache.IsAvailable(),
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(rateLimits.APIGeneral.Middleware())
	checkoutHandler.RegisterRoutes(v1, rateLimits)

	return router
}
