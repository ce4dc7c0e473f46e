package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appmetering "github.com/toolforge/backend/internal/application/metering"
	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/infrastructure/auth"
	"github.com/toolforge/backend/internal/infrastructure/config"
	"github.com/toolforge/backend/internal/infrastructure/logger"
	"github.com/toolforge/backend/internal/infrastructure/persistence"
	"github.com/toolforge/backend/internal/infrastructure/ratelimit"
	"github.com/toolforge/backend/internal/interfaces/http/handler"
	"github.com/toolforge/backend/internal/interfaces/http/middleware"
	"github.com/toolforge/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Toolforge Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	planRepo := persistence.NewPlanRecordRepository(db.DB)
	ledgerRepo := persistence.NewUsageLedgerRepository(db.DB)

	// Daily quota policy comes from deploy-time config
	quotaPolicy, err := metering.NewQuotaPolicy(cfg.Quota.AnonymousLimit, cfg.Quota.FreeLimit)
	if err != nil {
		log.Fatal("Invalid quota configuration", zap.Error(err))
	}
	log.Info("Quota policy loaded",
		zap.Int("anonymous_limit", cfg.Quota.AnonymousLimit),
		zap.Int("free_limit", cfg.Quota.FreeLimit),
	)

	// Initialize application services
	guardService := appmetering.NewGuardService(planRepo, ledgerRepo, quotaPolicy, log)
	usageService := appmetering.NewUsageQueryService(planRepo, ledgerRepo, quotaPolicy, log)
	adminService := appmetering.NewAdminService(planRepo, ledgerRepo, log)
	reportService := appmetering.NewReportService(ledgerRepo, log)

	// Token verification for signed-in callers
	jwtService := auth.NewJWTService(cfg.JWT)

	// Initialize HTTP handlers
	guardHandler := handler.NewGuardHandler(guardService)
	usageHandler := handler.NewUsageHandler(usageService)
	adminHandler := handler.NewAdminHandler(adminService, reportService)
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. RateLimit - Per-IP burst limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Burst limiting sits in front of the quota gate. The ledger stays
	// authoritative; losing Redis only disables the burst shield.
	if cfg.HTTP.RateLimitEnabled {
		redisClient, err := ratelimit.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, burst limiting disabled", zap.Error(err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Error("Error closing redis client", zap.Error(err))
				}
			}()
			limiter := ratelimit.NewRedisLimiter(redisClient, cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
			engine.Use(middleware.RateLimit(limiter, log))
			log.Info("Burst limiting enabled",
				zap.Int("requests", cfg.HTTP.RateLimitRequests),
				zap.Duration("window", cfg.HTTP.RateLimitWindow),
			)
		}
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Guard and usage endpoints accept anonymous callers. A bearer token is
	// honored when present but never required here.
	r.Register(router.RegistrarFunc(func(rg *gin.RouterGroup) {
		public := rg.Group("", middleware.OptionalJWTAuth(jwtService))
		guardHandler.RegisterRoutes(public)
		usageHandler.RegisterRoutes(public)
	}))

	// Admin endpoints require an authenticated admin token
	r.Register(router.RegistrarFunc(func(rg *gin.RouterGroup) {
		secured := rg.Group("",
			middleware.RequireJWTAuth(jwtService, log),
			middleware.RequireAdmin(),
		)
		adminHandler.RegisterRoutes(secured)
	}))

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
