package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pageforge/pageforge/src/config"
	"github.com/pageforge/pageforge/src/database"
	"github.com/pageforge/pageforge/src/handlers"
	"github.com/pageforge/pageforge/src/logging"
	"github.com/pageforge/pageforge/src/middleware"
	"github.com/pageforge/pageforge/src/services"
	"github.com/pageforge/pageforge/src/storage"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Int("port", cfg.Port).
		Bool("api_enabled", cfg.APIEnabled).
		Int("rate_limit_per_hour", cfg.RateLimitPerHour).
		Msg("starting server")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	log.Info().Msg("database connected")

	// Initialize services
	keyService := services.NewKeyService(db.GetPool())
	auditService := services.NewAuditService(db.GetPool())
	rateLimiter := services.NewRateLimiter(db.GetPool())
	adminService := services.NewAdminService(db.GetPool())
	notifier := services.NewWebhookNotifier(db.GetPool(), cfg.WebhookURL, cfg.WebhookSecret)
	retention := services.NewRetentionService(auditService, cfg.EnableAutoCleanup, cfg.LogRetentionDays)
	pageStore := storage.NewPostgresPageStore(db.GetPool(), cfg.ExternalHost)

	if cfg.WebhookURL != "" {
		log.Info().Str("url", cfg.WebhookURL).Msg("webhook notifications enabled")
	} else {
		log.Info().Msg("webhook notifications disabled (WEBHOOK_URL not set)")
	}

	// Auto-seed admin user on first run (if ADMIN_USERNAME and ADMIN_PASSWORD are set)
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		hasAdmins, err := adminService.HasAdmins(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("failed to check for existing admin users")
		} else if !hasAdmins {
			if _, err := adminService.CreateAdminUser(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
				log.Error().Err(err).Msg("failed to create initial admin user")
			} else {
				log.Info().Str("username", cfg.AdminUsername).Msg("initial admin user created")
			}
		}
	}

	// Start background services
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	notifier.Start(bgCtx)
	retention.Start(bgCtx)

	// Create Gin router
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())

	if cfg.AllowedOrigins != "" {
		corsConfig := cors.Config{
			AllowOrigins:     strings.Split(cfg.AllowedOrigins, ","),
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		router.Use(cors.New(corsConfig))
	}

	setupRoutes(router, db, cfg, keyService, auditService, rateLimiter, adminService, notifier, pageStore)

	// HTTP server with timeouts (protect from Slowloris)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	retention.Stop()
	notifier.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

func setupRoutes(
	router *gin.Engine,
	db *database.Database,
	cfg *config.Config,
	keyService *services.KeyService,
	auditService *services.AuditService,
	rateLimiter *services.RateLimiter,
	adminService *services.AdminService,
	notifier *services.WebhookNotifier,
	pageStore storage.PageStore,
) {
	healthHandler := handlers.NewHealthHandler(db)
	pagesHandler := handlers.NewPagesHandler(pageStore, auditService, notifier)
	adminHandler := handlers.NewAdminHandler(adminService, keyService, auditService, notifier, cfg.JWTSecret)

	// Public health endpoints
	router.GET("/status", healthHandler.HandleStatus)
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)

	// Page creation endpoint: auth, then sliding-window admission
	router.POST("/create-pages",
		middleware.APIKeyAuthMiddleware(keyService, cfg.APIEnabled),
		middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimitPerHour),
		pagesHandler.HandleCreatePages)

	// Management API
	router.POST("/admin/login", middleware.AdminLoginRateLimitMiddleware(), adminHandler.HandleLogin)

	admin := router.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.JWTSecret))
	{
		admin.POST("/logout", adminHandler.HandleLogout)
		admin.GET("/status", adminHandler.HandleStatus)
		admin.POST("/keys", adminHandler.HandleGenerateKey)
		admin.GET("/keys", adminHandler.HandleListKeys)
		admin.DELETE("/keys/:id", adminHandler.HandleRevokeKey)
		admin.GET("/keys/:id/stats", adminHandler.HandleKeyStats)
		admin.GET("/logs", adminHandler.HandleQueryLogs)
		admin.GET("/logs/stats", adminHandler.HandleLogStats)
		admin.GET("/webhooks", adminHandler.HandleListWebhookDeliveries)
	}
}
