// Package main provides the entry point for the adwatch campaign monitoring service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/adwatch/app/handlers"
	"github.com/amirphl/adwatch/app/middleware"
	"github.com/amirphl/adwatch/app/router"
	"github.com/amirphl/adwatch/app/scheduler"
	"github.com/amirphl/adwatch/app/services"
	businessflow "github.com/amirphl/adwatch/business_flow"
	"github.com/amirphl/adwatch/config"
	"github.com/amirphl/adwatch/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting adwatch...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging points the standard logger at stdout, a rotated file, or both
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(file)
	default:
		log.SetOutput(io.MultiWriter(os.Stdout, file))
	}
	log.SetFlags(log.LstdFlags | log.LUTC)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	logLevel := gormlogger.Warn
	if !cfg.SlowQueryLog {
		logLevel = gormlogger.Error
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// It returns a nil client when Redis is not configured.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity issues.
// The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// startCachePurger drops expired entries from the in-process response cache.
// The returned cancel function stops the purger.
func startCachePurger(parent context.Context, cache *services.MemoryResponseCache, interval time.Duration) func() {
	purgeCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				if n := cache.Purge(); n > 0 {
					log.Printf("Purged %d expired narrative cache entries", n)
				}
			}
		}
	}()
	return cancel
}

// initializeApplication wires repositories, services, flows, handlers and the scheduler
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval))
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewFacebookAccountRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	snapshotRepo := repository.NewMetricSnapshotRepository(db)
	thresholdRepo := repository.NewAlertThresholdRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	narrativeRepo := repository.NewNarrativeRecordRepository(db)
	prefRepo := repository.NewNotificationPreferenceRepository(db)
	notificationLogRepo := repository.NewNotificationLogRepository(db)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	gateway := services.NewFacebookClient(cfg.Facebook)
	llm := services.NewLLMClient(cfg.LLM)
	sender := services.NewWhatsAppService(&cfg.WhatsApp)

	var (
		responseCache services.ResponseCache
		locker        services.Locker
		rateLimiter   services.RateLimiter
	)
	if rc != nil {
		responseCache = services.NewRedisResponseCache(rc, cfg.Cache.RedisPrefix)
		locker = services.NewRedisLocker(rc, cfg.Cache.RedisPrefix)
	} else {
		memCache := services.NewMemoryResponseCache()
		stopFuncs = append(stopFuncs, startCachePurger(context.Background(), memCache, cfg.Cache.CleanupInterval))
		responseCache = memCache
		locker = services.NewMemoryLocker()
	}
	if cfg.Notification.RateLimiter == "redis" && rc != nil {
		rateLimiter = services.NewRedisRateLimiter(rc, cfg.Cache.RedisPrefix, cfg.Notification.RateLimitPerMinute, time.Minute)
	} else {
		rateLimiter = services.NewMemoryRateLimiter(cfg.Notification.RateLimitPerMinute, time.Minute)
	}

	// Initialize flows
	reconciler := businessflow.NewReconciler(gateway, campaignRepo, snapshotRepo, nil)
	syncFlow := businessflow.NewSyncFlow(gateway, reconciler, accountRepo, campaignRepo, snapshotRepo, locker, cfg.Sync, nil)
	alertFlow := businessflow.NewAlertFlow(campaignRepo, thresholdRepo, alertRepo, nil)
	narratives := businessflow.NewNarrativeGenerator(llm, responseCache, cfg.LLM.CacheTTL, cfg.LLM.Timeout, nil)
	dispatcher := businessflow.NewNotificationDispatcher(prefRepo, notificationLogRepo, rateLimiter, sender, cfg.WhatsApp.DefaultCountryCode, nil)
	metricsFlow := businessflow.NewMetricsFlow(campaignRepo, snapshotRepo)
	campaignFlow := businessflow.NewCampaignFlow(gateway, campaignRepo, snapshotRepo, narrativeRepo, narratives, nil)
	reportFlow := businessflow.NewDailyReportFlow(
		gateway,
		userRepo,
		accountRepo,
		campaignRepo,
		prefRepo,
		narrativeRepo,
		narratives,
		dispatcher,
		cfg.Sync.Concurrency,
		nil,
	)

	// Initialize handlers
	appRouter := router.NewFiberRouter(cfg, router.Handlers{
		Sync:     handlers.NewSyncHandler(syncFlow),
		Metrics:  handlers.NewMetricsHandler(metricsFlow),
		Campaign: handlers.NewCampaignHandler(campaignFlow),
		Alert:    handlers.NewAlertHandler(alertFlow, reportFlow),
	}, middleware.NewAuthMiddleware(tokenService), healthChecks)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(userRepo, syncFlow, alertFlow, dispatcher, reportFlow, cfg.Scheduler)
		if err := sched.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
		stopFuncs = append(stopFuncs, sched.Stop)
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
