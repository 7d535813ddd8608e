package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahilchouksey/univast-api/api"
	"github.com/sahilchouksey/univast-api/config"
	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/router"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/services/cron"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/cache"
	"github.com/sahilchouksey/univast-api/utils/logger"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	log := logger.New(getEnv.LOG_LEVEL, getEnv.LOG_FORMAT)

	if getEnv.JWT_SECRET == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	// Initialize GORM database connection
	store, err := database.StartGORM(getEnv, log)
	if err != nil {
		log.WithField("driver", getEnv.DB_DRIVER).Error("check whether the database is running and DB_* is set")
		return err
	}

	if err := store.Init(); err != nil {
		log.WithError(err).Error("failed to initialize database tables")
		return err
	}

	backend, err := NewStorageBackend(getEnv)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize attachment storage: %w", err)
	}

	emailService := services.NewEmailService(getEnv)
	if !emailService.IsConfigured() {
		log.Warn("SMTP credentials not set, notifications will be recorded as skipped")
	}

	container := NewContainer(getEnv, store.GetDB(), backend, emailService, log)

	// Redis is optional; without it login lockout and stats caching are off
	var redisCache *cache.RedisCache
	if getEnv.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(getEnv.REDIS_URL, cache.DefaultPrefix)
		if err != nil {
			log.WithError(err).Warn("failed to connect to Redis")
			redisCache = nil
		}
	}

	revocations := auth.NewRevocationStore(store.GetDB())

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if getEnv.CRON_ENABLED {
		cronManager = cron.NewCronManager(store.GetDB(), cron.Services{
			Accounts:      container.Accounts,
			Applications:  container.Applications,
			Institutions:  container.Institutions,
			Dispatcher:    container.Notifications,
			Notifications: container.Notifications,
			Revocations:   revocations,
		}, cron.Options{
			DigestSchedule:    getEnv.DIGEST_SCHEDULE,
			WeeklySchedule:    getEnv.WEEKLY_SCHEDULE,
			ReconcileSchedule: getEnv.RECONCILE_SCHEDULE,
			CleanupSchedule:   getEnv.CLEANUP_SCHEDULE,
			NotificationTTL:   notificationTTL(getEnv),
		}, log)
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.WithError(err).Warn("failed to start cron jobs")
			cronManager = nil
		}
	}

	// Defer Closing DB, cache and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if redisCache != nil {
			redisCache.Close()
		}
		store.Close()
	}()

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT), log)
	app := server.GetEngine()

	deps := router.Dependencies{
		Store:         store,
		JWT:           auth.NewJWTManager(auth.JWTConfig{Secret: getEnv.JWT_SECRET, Expiry: 24 * time.Hour, Issuer: getEnv.JWT_ISSUER}),
		Revocations:   revocations,
		Cron:          cronManager,
		Accounts:      container.Accounts,
		Applicants:    container.Applicants,
		Institutions:  container.Institutions,
		Programs:      container.Programs,
		Applications:  container.Applications,
		Attachments:   container.Attachments,
		Notifications: container.Notifications,
		Audit:         container.Audit,
		Log:           log,
	}
	if redisCache != nil {
		deps.Cache = redisCache
	}

	router.SetupRoutes(app, deps, router.RouteConfig{
		AllowedOrigins:    getEnv.ALLOWED_ORIGINS,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	})

	// Shut down cleanly on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down API server")
		if err := server.Shutdown(10 * time.Second); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	return server.Run()
}
