package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"points-commerce-engine/config"
	httpHandler "points-commerce-engine/internal/adapter/http/handler"
	"points-commerce-engine/internal/adapter/qr"
	pgStorage "points-commerce-engine/internal/adapter/storage/postgres"
	redisStorage "points-commerce-engine/internal/adapter/storage/redis"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/internal/service"
	"points-commerce-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Points Commerce Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	actorRepo := pgStorage.NewActorRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	cardRepo := pgStorage.NewCardRepo(pool)
	subRepo := pgStorage.NewSubmissionRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	pinSvc := service.NewArgon2PINService()
	tokenSvc := service.NewJWTTokenService(cfg.Identity.Secret, cfg.Identity.Issuer)
	qrCodec := qr.NewCodec(cfg.QR.Secret, cfg.QR.MaxDrift, sigSvc, nonceStore)

	// Initialize business services
	allocationSvc := service.NewAllocationService(ledgerRepo, balanceRepo, actorRepo, idempotencyRepo, idempotencyCache, transactor, log)
	salesSvc := service.NewSalesService(ledgerRepo, balanceRepo, idempotencyRepo, idempotencyCache, transactor, log)
	paymentSvc := service.NewPaymentService(txRepo, balanceRepo, cardRepo, ledgerRepo, actorRepo, transactor, log)
	cardSvc := service.NewCardService(cardRepo, balanceRepo, ledgerRepo, idempotencyRepo, idempotencyCache, transactor, encSvc, log)
	reconSvc := service.NewReconciliationService(subRepo, balanceRepo, ledgerRepo, actorRepo, pinSvc, transactor, log)
	ledgerSvc := service.NewLedgerService(ledgerRepo, balanceRepo, log)
	directorySvc := service.NewDirectoryService(actorRepo, pinSvc, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AllocationSvc:  allocationSvc,
		SalesSvc:       salesSvc,
		PaymentSvc:     paymentSvc,
		CardSvc:        cardSvc,
		ReconSvc:       reconSvc,
		LedgerSvc:      ledgerSvc,
		DirectorySvc:   directorySvc,
		TokenSvc:       tokenSvc,
		QRCodec:        qrCodec,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
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

	log.Info().Msg("Server exited")
}
