package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/iho/payrec/internal/adapter/bank"
	httpAdapter "github.com/iho/payrec/internal/adapter/http"
	"github.com/iho/payrec/internal/adapter/http/handler"
	"github.com/iho/payrec/internal/adapter/http/middleware"
	nsqAdapter "github.com/iho/payrec/internal/adapter/nsq"
	postgresRepo "github.com/iho/payrec/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/payrec/internal/adapter/repository/redis"
	"github.com/iho/payrec/internal/adapter/tasks"
	"github.com/iho/payrec/internal/infrastructure/config"
	"github.com/iho/payrec/internal/infrastructure/logger"
	"github.com/iho/payrec/internal/infrastructure/postgres"
	"github.com/iho/payrec/internal/infrastructure/redis"
	"github.com/iho/payrec/internal/taskqueue"
	"github.com/iho/payrec/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	// Run migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	appLogger.Info().Msg("connected to redis")

	// Connect to NSQ
	producer, err := nsqAdapter.NewProducer(cfg.NSQDAddress, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to nsqd")
	}
	defer producer.Stop()
	appLogger.Info().Msg("connected to nsqd")

	// Initialize repositories
	retrier := postgresRepo.NewRetrier(appLogger)
	txManager := postgresRepo.NewTxManager(pool)
	transactionRepo := postgresRepo.NewTransactionRepository(pool)
	beneficiaryRepo := postgresRepo.NewBeneficiaryRepository(pool)
	ownerRepo := postgresRepo.NewOwnerRepository(pool)
	idempotencyRepo := postgresRepo.NewIdempotencyRepository(pool)
	taskRepo := postgresRepo.NewTaskRepository(pool, retrier)
	idGen := postgresRepo.NewULIDGenerator()

	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	debtorRepo := redisRepo.NewCachedDebtorRepository(
		postgresRepo.NewDebtorAccountRepository(pool), cache, appLogger)

	// Bank client
	bankClient := bank.NewClient(bank.Config{
		BaseURL:        cfg.BankBaseURL,
		Token:          cfg.BankToken,
		RequestTimeout: cfg.BankTimeout,
		RetryInterval:  cfg.BankRetryInterval,
		MaxRetryTime:   cfg.BankMaxRetryTime,
	}, appLogger)

	// Task queue
	queue := taskqueue.NewQueue(taskRepo, idGen)

	// Initialize use cases
	guard := usecase.NewIdempotencyGuard(idempotencyRepo)
	transactionUC := usecase.NewTransactionUseCase(txManager, transactionRepo, guard, idGen, appLogger)
	beneficiaryUC := usecase.NewBeneficiaryUseCase(txManager, beneficiaryRepo, debtorRepo, bankClient, idGen, appLogger)
	debtorUC := usecase.NewDebtorAccountUseCase(txManager, debtorRepo, guard, appLogger)
	ownerUC := usecase.NewOwnerUseCase(txManager, ownerRepo, guard, appLogger)
	paymentUC := usecase.NewPaymentUseCase(txManager, transactionRepo, beneficiaryRepo, debtorRepo, bankClient, cfg.PaymentLeadTime, appLogger)
	webhookUC := usecase.NewWebhookUseCase(txManager, transactionRepo, guard, bankClient, appLogger)
	publisherUC := usecase.NewPublisherUseCase(transactionRepo, ownerRepo, producer, cfg.NSQPublishTopic, appLogger)

	// Task worker
	registry := taskqueue.NewRegistry()
	tasks.NewHandlers(transactionUC, beneficiaryUC, paymentUC, webhookUC, publisherUC, debtorUC, queue, appLogger).
		Register(registry)

	worker := taskqueue.NewWorker(taskqueue.WorkerConfig{
		Store:       taskRepo,
		Registry:    registry,
		Logger:      appLogger,
		Interval:    cfg.WorkerPollInterval,
		BatchSize:   cfg.WorkerBatchSize,
		Visibility:  cfg.WorkerVisibilityTimeout,
		MaxAttempts: cfg.WorkerMaxAttempts,
	})

	go func() {
		if err := worker.Start(ctx); err != nil && ctx.Err() == nil {
			appLogger.Error().Err(err).Msg("task worker stopped")
		}
	}()

	// Change notification consumer
	dispatcher := nsqAdapter.NewChangeDispatcher(queue, debtorUC, ownerUC, appLogger)
	consumer, err := nsqAdapter.NewConsumer(cfg.NSQChangesTopic, cfg.NSQChangesChannel, cfg.NSQMaxInFlight, dispatcher.HandleMessage, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to create nsq consumer")
	}
	if len(cfg.NSQLookupdAddrs) > 0 {
		err = consumer.ConnectToLookupd(cfg.NSQLookupdAddrs)
	} else {
		err = consumer.ConnectToNSQD(cfg.NSQDAddress)
	}
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect nsq consumer")
	}
	defer consumer.Stop()

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TransactionHandler:   handler.NewTransactionHandler(transactionUC),
		BeneficiaryHandler:   handler.NewBeneficiaryHandler(beneficiaryUC),
		DebtorAccountHandler: handler.NewDebtorAccountHandler(debtorUC),
		TaskHandler:          handler.NewTaskHandler(queue),
		WebhookHandler:       handler.NewWebhookHandler(queue, appLogger),
		HealthHandler:        handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:     idempotencyStore,
		RateLimiter:          rateLimiter,
		WebhookSecret:        cfg.WebhookSecret,
		Logger:               appLogger,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	stop()

	appLogger.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	appLogger.Info().Msg("server stopped")
}
