package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coin-bank/config"
	httpHandler "coin-bank/internal/adapter/http/handler"
	"coin-bank/internal/adapter/http/middleware"
	pgStorage "coin-bank/internal/adapter/storage/postgres"
	redisStorage "coin-bank/internal/adapter/storage/redis"
	"coin-bank/internal/bank"
	"coin-bank/internal/core/ports"
	"coin-bank/internal/service"
	"coin-bank/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("self", cfg.Bank.SelfIdentity).
		Msg("Starting Coin Bank")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := pgStorage.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	settingsRepo := pgStorage.NewSettingsRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	transferQueue := redisStorage.NewTransferQueue(rdb)

	// Rebuild the ledger
	ids := bank.Identities{
		Self:    cfg.Bank.SelfIdentity,
		Vault:   cfg.Bank.VaultIdentity,
		Reserve: cfg.Bank.ReserveIdentity,
	}
	l, engine, err := service.LoadState(ctx, ids.Vault, accountRepo, settingsRepo, cfg.Bank.InterestRateBps, time.Now().UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}
	log.Info().
		Int("accounts", l.Len()).
		Int64("rate_bps", engine.RateBasisPoints()).
		Msg("Ledger loaded")

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)
	bankSvc := service.NewBankService(ids, l, engine, accountRepo, settingsRepo, transactor, idempotencyCache, transferQueue, log)

	// Background workers
	sender, err := service.NewHTTPTransferSender(cfg.Transfer.Endpoint, cfg.Transfer.Secret, sigSvc, &http.Client{Timeout: cfg.Transfer.Timeout})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize transfer sender")
	}
	dispatcher := service.NewTransferDispatcher(transferQueue, sender, cfg.Transfer.PollInterval, log)
	scheduler := service.NewInterestScheduler(bankSvc, ids.Reserve, cfg.Bank.InterestInterval, log)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		dispatcher.Run(workerCtx)
	}()
	go func() {
		defer workers.Done()
		scheduler.Run(workerCtx)
	}()

	rateLimitRules := middleware.DefaultRateLimitRules()
	if cfg.RateLimit.Limit > 0 && cfg.RateLimit.Window > 0 {
		rateLimitRules["accounts"] = middleware.RateLimitRule{
			Limit:  int64(cfg.RateLimit.Limit),
			Window: cfg.RateLimit.Window,
		}
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		BankSvc:        bankSvc,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		TokenSvc:       tokenSvc,
		NotifierSecret: cfg.Notifier.Secret,
		TargetFloat:    cfg.Bank.TargetFloat,
		RateLimitStore: rateLimitStore,
		RateLimitRules: rateLimitRules,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopWorkers()
	workers.Wait()

	log.Info().Msg("Server exited")
}
