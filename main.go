// Package main provides the main entry point for the Textwave campaign platform
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/textwave/textwave-backend/app/handlers"
	"github.com/textwave/textwave-backend/app/middleware"
	"github.com/textwave/textwave-backend/app/router"
	"github.com/textwave/textwave-backend/app/scheduler"
	"github.com/textwave/textwave-backend/app/services"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/config"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Textwave application...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := cfg.Server.Address()
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers before closing the listener so in-flight
	// dispatch tasks drain cleanly
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

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
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

	if err := db.AutoMigrate(
		&models.Customer{},
		&models.Wallet{},
		&models.CreditTransaction{},
		&models.Contact{},
		&models.ContactList{},
		&models.ContactListMembership{},
		&models.MessageTemplate{},
		&models.Campaign{},
		&models.CampaignMessage{},
		&models.Redemption{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeRedis initializes the Redis client and verifies connectivity
func initializeRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.Addr, cfg.DB)
	return rc, nil
}

// initializeDispatcher builds the task queue backend selected by config
func initializeDispatcher(cfg config.DispatcherConfig, rc *redis.Client, prefix string) (services.TaskDispatcher, error) {
	switch cfg.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("redis dispatcher backend requires a redis connection")
		}
		return services.NewRedisTaskDispatcher(rc, prefix), nil
	case "amqp":
		return services.NewAMQPTaskDispatcher(cfg.AMQPURL, cfg.AMQPQueue)
	case "memory":
		return services.NewInMemoryTaskDispatcher(1024), nil
	default:
		return nil, fmt.Errorf("unknown dispatcher backend %q", cfg.Backend)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeRedis(cfg.Redis)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewCreditTransactionRepository(db)
	contactRepo := repository.NewContactRepository(db)
	listRepo := repository.NewContactListRepository(db)
	templateRepo := repository.NewMessageTemplateRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	messageRepo := repository.NewCampaignMessageRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	txRunner := repository.NewTxRunner(db)

	// Initialize services
	dispatcher, err := initializeDispatcher(cfg.Dispatcher, rc, cfg.Redis.Prefix)
	if err != nil {
		return nil, err
	}

	provider := services.NewHTTPSMSProvider(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)

	statsCache := services.NewCampaignStatsCache(rc, cfg.Redis.Prefix, cfg.Cache.StatsTTL)

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	ledger := businessflow.NewCreditLedger(walletRepo, transactionRepo, txRunner)

	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo,
		customerRepo,
		listRepo,
		templateRepo,
		contactRepo,
		auditRepo,
		txRunner,
	)

	enqueueFlow := businessflow.NewEnqueueFlow(
		campaignRepo,
		customerRepo,
		contactRepo,
		messageRepo,
		auditRepo,
		ledger,
		dispatcher,
		txRunner,
		log.Default(),
	)

	finalizerFlow := businessflow.NewFinalizerFlow(campaignRepo, messageRepo, statsCache)

	dispatchFlow := businessflow.NewDispatchFlow(
		messageRepo,
		campaignRepo,
		customerRepo,
		ledger,
		provider,
		finalizerFlow,
		log.Default(),
	)

	deliveryFlow := businessflow.NewDeliveryFlow(messageRepo, finalizerFlow, statsCache, log.Default())

	redemptionFlow := businessflow.NewRedemptionFlow(messageRepo, redemptionRepo, auditRepo)

	walletFlow := businessflow.NewWalletFlow(customerRepo, auditRepo, ledger)

	// Initialize handlers
	campaignHandler := handlers.NewCampaignHandler(campaignFlow, enqueueFlow, finalizerFlow)
	walletHandler := handlers.NewWalletHandler(walletFlow)
	webhookHandler := handlers.NewWebhookHandler(deliveryFlow)
	redemptionHandler := handlers.NewRedemptionHandler(redemptionFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(
		router.Config{
			AppName:          "Textwave API",
			AllowOrigins:     cfg.Security.CORSAllowedOrigins,
			WebhookSecret:    cfg.Webhook.Secret,
			RateLimitPerMin:  cfg.Server.RateLimitPerMin,
			EnableMetrics:    cfg.Metrics.Enabled,
			SkipHealthInLogs: true,
		},
		authMiddleware,
		campaignHandler,
		walletHandler,
		webhookHandler,
		redemptionHandler,
	)

	// Start the dispatch worker pool
	worker := scheduler.NewDispatchWorker(dispatchFlow, dispatcher, scheduler.DispatchWorkerConfig{
		Workers:       cfg.Worker.Workers,
		MaxAttempts:   cfg.Worker.MaxAttempts,
		BaseBackoff:   cfg.Worker.BaseBackoff,
		MaxBackoff:    cfg.Worker.MaxBackoff,
		RatePerSecond: cfg.Worker.RatePerSecond,
		TaskTimeout:   cfg.Worker.TaskTimeout,
	}, log.Default())
	stopWorker, err := worker.Start(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to start dispatch worker: %w", err)
	}
	stopFuncs = append(stopFuncs, stopWorker)

	// Start the campaign scheduler and queued-message sweep
	sched := scheduler.NewCampaignScheduler(campaignRepo, messageRepo, enqueueFlow, dispatcher, scheduler.CampaignSchedulerConfig{
		Interval:      cfg.Scheduler.Interval,
		SweepInterval: cfg.Scheduler.SweepInterval,
		StalledAfter:  cfg.Scheduler.StalledAfter,
		BatchSize:     cfg.Scheduler.BatchSize,
		LogDir:        cfg.Scheduler.LogDir,
	})
	stopScheduler := sched.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler)

	stopFuncs = append(stopFuncs, func() {
		if err := dispatcher.Close(); err != nil {
			log.Printf("Error closing dispatcher: %v", err)
		}
	})

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
