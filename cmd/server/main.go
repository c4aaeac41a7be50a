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
	"go.uber.org/zap"

	appaccounting "github.com/CleanExpo/RestoreAssist-sub010/internal/application/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/shared"
	infraaccounting "github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/cache"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/config"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/logger"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/persistence"
	syncinfra "github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/sync"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/telemetry"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/interfaces/http/handler"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/interfaces/http/middleware"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting accounting sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize repositories
	syncStateRepo := persistence.NewGormInvoiceSyncRepository(db.DB)
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	auditLogRepo := persistence.NewGormAuditLogRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)

	// Webhook idempotency store: Redis preferred, in-memory fallback
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer idempotencyStore.Close()

	// Provider clients for every enabled accounting platform
	providerRegistry, err := infraaccounting.NewRegistry(cfg.Providers, log)
	if err != nil {
		log.Fatal("Failed to build provider registry", zap.Error(err))
	}
	log.Info("Provider registry ready", zap.Strings("providers", providerCodes(providerRegistry)))

	// Sync resilience layer: queue, per-provider breakers and limiters,
	// outcome metrics
	queue := syncinfra.NewQueue(nil)
	breakers := syncinfra.NewBreakerRegistry(breakerConfig(cfg.Breaker), nil)
	limiters := syncinfra.NewLimiterRegistry(limiterQuotas(cfg.RateLimit), limiterFallback(cfg.RateLimit), nil)
	outcomes := syncinfra.NewMetrics(metricsWindow(cfg.Sync), nil)

	orchestrator := syncinfra.NewOrchestrator(
		queue, breakers, limiters, providerRegistry,
		syncStateRepo, integrationRepo, auditLogRepo,
		orchestratorConfig(cfg.Sync), outcomes, nil, log,
	)

	// Initialize application services
	syncService := appaccounting.NewSyncService(syncStateRepo, integrationRepo, auditLogRepo, queue)
	webhookService := appaccounting.NewWebhookService(
		webhookEventRepo, syncStateRepo, auditLogRepo, providerRegistry,
		idempotencyStore,
		shared.IdempotencyConfig{Enabled: true, TTL: cfg.Webhook.IdempotencyTTL},
		webhookConfig(cfg.Webhook),
		log,
	)

	// Re-enqueue syncs that were in flight when the previous process
	// stopped. The queue is process-local; without this, a PENDING claim
	// with no queued job would block the invoice forever.
	recovered, err := syncService.RecoverPending(context.Background())
	if err != nil {
		log.Fatal("Failed to recover pending syncs", zap.Error(err))
	}
	if recovered > 0 {
		log.Info("Re-enqueued interrupted syncs", zap.Int("count", recovered))
	}

	// Start background workers
	workerCtx := context.Background()
	if err := orchestrator.Start(workerCtx); err != nil {
		log.Fatal("Failed to start sync orchestrator", zap.Error(err))
	}
	if err := webhookService.Start(workerCtx); err != nil {
		log.Fatal("Failed to start webhook consumers", zap.Error(err))
	}

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(workerCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	if meterProvider.IsEnabled() {
		meter := meterProvider.Meter("accounting-sync")
		if err := telemetry.RegisterSyncMetrics(meter, telemetry.SyncMetricsSources{
			Queue:    queue,
			Breakers: breakers,
			Limiters: limiters,
			Outcomes: outcomes,
		}); err != nil {
			log.Error("Failed to register sync metrics", zap.Error(err))
		}
	}

	// Initialize handlers
	syncHandler := handler.NewSyncHandler(syncService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	metricsHandler := handler.NewSyncMetricsHandler(queue, breakers, limiters, outcomes)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	switch cfg.App.Env {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	// Apply middleware stack in order
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("HTTP rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside the versioned API group)
	engine.GET("/health", healthHandler(db, log))

	// Setup routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	invoiceRoutes := router.NewDomainGroup("invoices", "/invoices").
		POST("/:id/sync", syncHandler.EnqueueSync).
		POST("/:id/sync/retry", syncHandler.RetrySync).
		GET("/:id/sync", syncHandler.GetSyncStatus).
		GET("/:id/sync/audit", syncHandler.GetAuditTrail)

	integrationRoutes := router.NewDomainGroup("integrations", "/integrations").
		GET("", syncHandler.ListIntegrations)

	webhookRoutes := router.NewDomainGroup("webhooks", "/webhooks").
		POST("/:provider", webhookHandler.HandleWebhook)

	syncRoutes := router.NewDomainGroup("sync", "/sync").
		GET("/metrics", metricsHandler.GetSyncMetrics)

	systemRoutes := router.NewDomainGroup("system", "/system").
		GET("/info", systemHandler.GetSystemInfo).
		GET("/ping", systemHandler.Ping)

	r.Register(invoiceRoutes).
		Register(integrationRoutes).
		Register(webhookRoutes).
		Register(syncRoutes).
		Register(systemRoutes)

	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Drain background workers before closing shared resources
	if err := webhookService.Stop(ctx); err != nil {
		log.Error("Webhook consumers did not stop cleanly", zap.Error(err))
	}
	if err := orchestrator.Stop(ctx); err != nil {
		log.Error("Sync orchestrator did not stop cleanly", zap.Error(err))
	}
	if err := meterProvider.Shutdown(ctx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited")
}

// healthHandler reports liveness and database connectivity.
func healthHandler(db *persistence.Database, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			log.Error("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "ok",
		})
	}
}

func breakerConfig(cfg config.BreakerConfig) syncinfra.BreakerConfig {
	out := syncinfra.DefaultBreakerConfig()
	if cfg.FailureThreshold > 0 {
		out.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.Cooldown > 0 {
		out.Cooldown = cfg.Cooldown
	}
	if cfg.MaxCooldown > 0 {
		out.MaxCooldown = cfg.MaxCooldown
	}
	return out
}

func limiterFallback(cfg config.RateLimitConfig) syncinfra.LimiterConfig {
	out := syncinfra.DefaultLimiterConfig()
	if cfg.DefaultCapacity > 0 {
		out.Capacity = cfg.DefaultCapacity
	}
	if cfg.Window > 0 {
		out.Window = cfg.Window
	}
	return out
}

// limiterQuotas builds per-provider quota overrides. A provider with no
// configured capacity uses the fallback quota.
func limiterQuotas(cfg config.RateLimitConfig) map[accounting.ProviderCode]syncinfra.LimiterConfig {
	window := cfg.Window
	if window <= 0 {
		window = syncinfra.DefaultLimiterConfig().Window
	}

	quotas := make(map[accounting.ProviderCode]syncinfra.LimiterConfig)
	if cfg.XeroCapacity > 0 {
		quotas[accounting.ProviderCodeXero] = syncinfra.LimiterConfig{Capacity: cfg.XeroCapacity, Window: window}
	}
	if cfg.QuickBooksCapacity > 0 {
		quotas[accounting.ProviderCodeQuickBooks] = syncinfra.LimiterConfig{Capacity: cfg.QuickBooksCapacity, Window: window}
	}
	if cfg.MYOBCapacity > 0 {
		quotas[accounting.ProviderCodeMYOB] = syncinfra.LimiterConfig{Capacity: cfg.MYOBCapacity, Window: window}
	}
	return quotas
}

func metricsWindow(cfg config.SyncConfig) time.Duration {
	if cfg.MetricsWindow > 0 {
		return cfg.MetricsWindow
	}
	return time.Minute
}

func orchestratorConfig(cfg config.SyncConfig) syncinfra.OrchestratorConfig {
	out := syncinfra.DefaultOrchestratorConfig()
	if cfg.Workers > 0 {
		out.Workers = cfg.Workers
	}
	if cfg.PollInterval > 0 {
		out.PollInterval = cfg.PollInterval
	}
	if cfg.ProviderTimeout > 0 {
		out.ProviderTimeout = cfg.ProviderTimeout
	}
	if cfg.MaxRetries > 0 {
		out.Backoff.MaxRetries = cfg.MaxRetries
	}
	if cfg.BackoffBase > 0 {
		out.Backoff.BaseDelay = cfg.BackoffBase
	}
	if cfg.BackoffMax > 0 {
		out.Backoff.MaxDelay = cfg.BackoffMax
	}
	return out
}

func webhookConfig(cfg config.WebhookConfig) appaccounting.WebhookConfig {
	out := appaccounting.DefaultWebhookConfig()
	if cfg.Consumers > 0 {
		out.Consumers = cfg.Consumers
	}
	if cfg.PollInterval > 0 {
		out.PollInterval = cfg.PollInterval
	}
	if cfg.BatchSize > 0 {
		out.BatchSize = cfg.BatchSize
	}
	return out
}

func providerCodes(registry accounting.ProviderRegistry) []string {
	clients := registry.Clients()
	out := make([]string, 0, len(clients))
	for _, client := range clients {
		out = append(out, string(client.ProviderCode()))
	}
	return out
}
