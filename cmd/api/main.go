// main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/api"
	"github.com/Marga-Ghale/statement-saas/internal/api/handlers"
	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/billing"
	"github.com/Marga-Ghale/statement-saas/internal/config"
	"github.com/Marga-Ghale/statement-saas/internal/converter"
	"github.com/Marga-Ghale/statement-saas/internal/cron"
	"github.com/Marga-Ghale/statement-saas/internal/db"
	"github.com/Marga-Ghale/statement-saas/internal/email"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"github.com/Marga-Ghale/statement-saas/internal/seed"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	envErr := godotenv.Load()

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()
	log := logger.New("api", cfg.Environment, cfg.LogLevel)
	defer log.Sync()

	if envErr != nil {
		log.Info("No .env file found, using environment variables")
	}

	// ============================================
	// Set Gin mode
	// ============================================
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Session codec
	// ============================================
	codec, err := auth.NewSessionCodec(cfg.AuthSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatal("Invalid session configuration", "error", err)
	}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	log.Info("Running database migrations...", "path", cfg.MigrationsPath)
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log.Named("migrate")); err != nil {
		log.Fatal("Migration failed", "error", err)
	}

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	ctx := context.Background()

	pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL, log.Named("postgres"))
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	defer pg.Close()

	repos := repository.NewRepositories(pg.Pool)

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	health := handlers.HealthChecks{Database: pg}
	deps := &service.ServiceDeps{
		Config: cfg,
		Repos:  repos,
		Codec:  codec,
		Log:    log,
	}

	if cfg.RedisURL != "" {
		redisDB, err := db.NewRedisDB(ctx, cfg.RedisURL, log.Named("redis"))
		if err != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", "error", err)
		} else {
			defer redisDB.Close()
			deps.Cache = redisDB
			health.Cache = redisDB
		}
	}

	// ============================================
	// Initialize Email Service
	// ============================================
	emailSvc := email.NewService(&email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		UseTLS:   cfg.SMTPUseTLS,
	}, log.Named("email"))
	if !emailSvc.Enabled() {
		log.Warn("Email not configured (SMTP_HOST not set)")
	}
	health.EmailEnabled = emailSvc.Enabled()

	emailQueue := email.NewEmailQueue(emailSvc, cfg.EmailWorkers, log.Named("email"))
	deps.Mailer = emailQueue

	// ============================================
	// Initialize Billing + Services
	// ============================================
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, billing calls will fail")
	}
	stripeProvider := billing.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, log.Named("stripe"))
	deps.Billing = stripeProvider

	services := service.NewServices(deps)

	if cfg.SeedOnStart {
		var plans seed.PlanCreator
		if cfg.StripeSecretKey != "" {
			plans = stripeProvider
		}
		if err := seed.SeedData(ctx, repos, plans, log); err != nil {
			log.Error("Seeding failed", "error", err)
		}
	}

	// ============================================
	// Converter storage
	// ============================================
	store, err := converter.NewStore(cfg.UploadDir, cfg.MaxUploadSize, log.Named("converter"))
	if err != nil {
		log.Fatal("Failed to prepare upload directory", "error", err, "dir", cfg.UploadDir)
	}

	// ============================================
	// Scheduled jobs
	// ============================================
	schedulerDeps := cron.SchedulerDeps{
		Uploads:   store,
		Retention: cfg.UploadRetention,
		Log:       log,
	}
	if cfg.StripeSecretKey != "" {
		schedulerDeps.Catalog = services.Billing
	}
	scheduler := cron.NewScheduler(schedulerDeps)
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	// ============================================
	// HTTP server
	// ============================================
	h := handlers.NewHandlers(handlers.HandlerDeps{
		Services: services,
		Store:    store,
		Health:   health,
		Log:      log,
	})

	router := api.NewRouter(api.RouterConfig{
		Handlers:       h,
		Codec:          codec,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadSize:  cfg.MaxUploadSize,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	scheduler.Stop()
	emailQueue.Stop()

	log.Info("Server exited")
}
