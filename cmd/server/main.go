/**
 * @description
 * This is the main entry point for the gas station API service.
 * It is responsible for wiring the sponsorship services and starting the HTTP server.
 *
 * Key features:
 * - Configuration Loading: Loads environment variables from a .env.local file.
 * - Database Connection: Establishes and manages a connection to the PostgreSQL database.
 * - Fee Payer: Signs locally with a key from the vault, or delegates to the remote signer.
 * - Server Initialization: Sets up the Gin web server with all its routes and middleware.
 * - Graceful Shutdown: Handles interrupt signals (like Ctrl+C) to shut down the server gracefully.
 */

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poly-pro/gas-station/internal/api"
	"github.com/poly-pro/gas-station/internal/auth"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/poly-pro/gas-station/internal/config"
	"github.com/poly-pro/gas-station/internal/feepayer"
	"github.com/poly-pro/gas-station/internal/logger"
	"github.com/poly-pro/gas-station/internal/market"
	"github.com/poly-pro/gas-station/internal/quota"
	"github.com/poly-pro/gas-station/internal/services"
	"github.com/poly-pro/gas-station/internal/signer/vault"
	"github.com/poly-pro/gas-station/internal/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// ------------------------------------------------------------------
	// Configuration Loading
	// ------------------------------------------------------------------
	// The application will exit if the configuration cannot be loaded.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.InitLogger("gas-station", "development").Fatal("cannot load config", zap.Error(err))
	}
	log := logger.InitLogger("gas-station", cfg.Stage)
	defer logger.Sync()
	log.Info("configuration loaded successfully", zap.String("stage", cfg.Stage), zap.String("fee_payer_mode", cfg.FeePayerMode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ------------------------------------------------------------------
	// Database Connection
	// ------------------------------------------------------------------
	var store quota.Store
	if cfg.DatabaseURL != "" {
		connPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("cannot connect to the database", zap.Error(err))
		}
		defer connPool.Close()

		if err := connPool.Ping(ctx); err != nil {
			log.Fatal("database ping failed", zap.Error(err))
		}
		log.Info("database connection established")
		store = quota.NewPostgresStore(connPool, logger.Named("quota"))
	} else {
		log.Warn("DATABASE_URL not set, using in-memory quota store. Usage is lost on restart.")
		store = quota.NewMemoryStore()
	}

	// ------------------------------------------------------------------
	// Redis Connection
	// ------------------------------------------------------------------
	// Redis is optional. It shares the config cache between replicas and fans
	// sponsorship events out to websocket clients on any replica.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping failed", zap.Error(err))
		}
		log.Info("redis connection established")
	}

	// ------------------------------------------------------------------
	// Chain & Market Clients
	// ------------------------------------------------------------------
	chainClient, err := chain.Dial(ctx, cfg.ChainRPCURL, logger.Named("chain"))
	if err != nil {
		log.Fatal("cannot connect to chain RPC", zap.Error(err))
	}
	defer chainClient.Close()

	markets := market.NewAPIClient(cfg.MarketAPIURL, logger.Named("market"))

	// ------------------------------------------------------------------
	// Fee Payer
	// ------------------------------------------------------------------
	var signer feepayer.Signer
	switch cfg.FeePayerMode {
	case config.FeePayerModeRemote:
		remote, err := feepayer.DialRemoteSigner(ctx, cfg.RemoteSignerAddress, logger.Named("feepayer"))
		if err != nil {
			log.Fatal("cannot reach remote signer", zap.Error(err))
		}
		defer remote.Close()
		signer = remote
	default:
		keyVault, err := vault.New(ctx, cfg.FeePayerSecretARN, cfg.FeePayerPrivateKey, logger.Named("vault"))
		if err != nil {
			log.Fatal("failed to initialize vault", zap.Error(err))
		}
		key, err := keyVault.FeePayerKey(ctx)
		if err != nil {
			log.Fatal("failed to load fee payer key", zap.Error(err))
		}
		local, err := feepayer.NewLocalSigner(key, logger.Named("feepayer"))
		if err != nil {
			log.Fatal("invalid fee payer key", zap.Error(err))
		}
		signer = local
	}
	log.Info("fee payer ready", zap.String("fee_payer", signer.Address().Hex()))

	// ------------------------------------------------------------------
	// Services
	// ------------------------------------------------------------------
	configCache := quota.NewConfigCache(store, redisClient, cfg.ConfigCacheTTL, logger.Named("config-cache"))
	quotas := services.NewQuotaService(store, configCache, logger.Named("quota-service"))

	var events services.EventPublisher
	if redisClient != nil {
		events = services.NewRedisEventPublisher(redisClient)
	}
	sponsorships := services.NewSponsorshipService(quotas, markets, chainClient, signer, events, services.SponsorshipConfig{
		ChainID:         cfg.ChainID,
		Forwarder:       common.HexToAddress(cfg.ForwarderAddress),
		DefaultGasLimit: cfg.DefaultGasLimit,
		PreparedTxTTL:   cfg.PreparedTxTTL,
		FinalityTimeout: cfg.FinalityTimeout,
	}, logger.Named("sponsorship-service"))

	hub := websocket.NewHub(ctx, logger.Named("hub"), redisClient, services.EventChannelPrefix)
	go hub.Run()

	authMiddleware, err := auth.NewAuthMiddleware(cfg.AuthIssuerURL)
	if err != nil {
		log.Fatal("failed to initialize auth middleware", zap.Error(err))
	}

	// ------------------------------------------------------------------
	// Server Initialization
	// ------------------------------------------------------------------
	server := api.NewServer(ctx, cfg, api.Dependencies{
		Quotas:       quotas,
		Sponsorships: sponsorships,
		Hub:          hub,
		Auth:         authMiddleware,
	}, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ------------------------------------------------------------------
	// Start Server & Handle Graceful Shutdown
	// ------------------------------------------------------------------
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("starting server", zap.String("address", httpServer.Addr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
		}
	case sig := <-shutdownChannel:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Submissions waiting on finality run detached from their request, so
		// give them the finality timeout to settle and record usage.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.FinalityTimeout+5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
		log.Info("server shutdown complete")
	}

	// Stops the hub, the rate limiter janitor and the Redis subscription.
	cancel()
	log.Info("application has shut down")
}
