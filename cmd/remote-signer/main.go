/**
 * @description
 * This is the main entry point for the fee payer remote signing service.
 * It holds the fee payer key and co-signs sponsored transactions for the API
 * service over gRPC, so the key never lives in the internet-facing process.
 *
 * Key features:
 * - Configuration Loading: Loads environment variables (port, key source).
 * - Dependency Initialization: Sets up the logger, vault, fee payer signer, and gRPC server.
 * - Connection Multiplexing: Serves HTTP health checks and gRPC on the same port.
 * - Graceful Shutdown: Listens for OS interrupt signals (e.g., Ctrl+C) to shut
 *   down the gRPC server gracefully, allowing active requests to finish.
 */
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poly-pro/gas-station/internal/feepayer"
	"github.com/poly-pro/gas-station/internal/logger"
	"github.com/poly-pro/gas-station/internal/signer/config"
	"github.com/poly-pro/gas-station/internal/signer/server"
	"github.com/poly-pro/gas-station/internal/signer/signerrpc"
	"github.com/poly-pro/gas-station/internal/signer/vault"
	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func main() {
	// ------------------------------------------------------------------
	// Configuration Loading
	// ------------------------------------------------------------------
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.InitLogger("remote-signer", "development").Fatal("cannot load config", zap.Error(err))
	}
	log := logger.InitLogger("remote-signer", cfg.Stage)
	defer logger.Sync()
	log.Info("configuration loaded successfully")

	// ------------------------------------------------------------------
	// Dependency Initialization
	// ------------------------------------------------------------------
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	keyVault, err := vault.New(ctx, cfg.FeePayerSecretARN, cfg.FeePayerPrivateKey, logger.Named("vault"))
	if err != nil {
		cancel()
		log.Fatal("failed to initialize vault", zap.Error(err))
	}
	key, err := keyVault.FeePayerKey(ctx)
	cancel()
	if err != nil {
		log.Fatal("failed to load fee payer key", zap.Error(err))
	}

	signer, err := feepayer.NewLocalSigner(key, logger.Named("feepayer"))
	if err != nil {
		log.Fatal("invalid fee payer key", zap.Error(err))
	}

	grpcServer := server.NewGRPCServer(logger.Named("grpc"), signer)

	// ------------------------------------------------------------------
	// Server Setup with Connection Multiplexing (HTTP + gRPC)
	// ------------------------------------------------------------------
	// The platform health checks over HTTP/1.1 while the API service speaks
	// gRPC, so both are served on the one injected PORT.
	lis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%s", cfg.Port))
	if err != nil {
		log.Fatal("failed to listen on port", zap.String("port", cfg.Port), zap.Error(err))
	}
	log.Info("TCP listener created", zap.String("address", lis.Addr().String()))

	mux := cmux.New(lis)
	httpL := mux.Match(cmux.HTTP1Fast())
	grpcL := mux.Match(cmux.HTTP2())

	// ------------------------------------------------------------------
	// HTTP Health Check Server
	// ------------------------------------------------------------------
	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"remote-signer","feePayer":"%s"}`, signer.Address().Hex())
	})

	httpServer := &http.Server{
		Handler:      httpMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("HTTP health check server starting", zap.String("port", cfg.Port))
		if err := httpServer.Serve(httpL); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed to serve", zap.Error(err))
		}
	}()

	// ------------------------------------------------------------------
	// gRPC Server Setup
	// ------------------------------------------------------------------
	s := grpc.NewServer()
	signerrpc.RegisterFeePayerServer(s, grpcServer)

	// Reflection lets grpcurl discover the service.
	reflection.Register(s)

	go func() {
		log.Info("gRPC server starting", zap.String("address", lis.Addr().String()))
		if err := s.Serve(grpcL); err != nil {
			log.Fatal("gRPC server failed to serve", zap.Error(err))
		}
	}()

	go func() {
		if err := mux.Serve(); err != nil {
			log.Error("connection multiplexer stopped", zap.Error(err))
		}
	}()

	log.Info("server is ready and listening",
		zap.String("port", cfg.Port),
		zap.String("fee_payer", signer.Address().Hex()))

	// ------------------------------------------------------------------
	// Handle Graceful Shutdown
	// ------------------------------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Waits for in-flight Cosign calls to finish.
	s.GracefulStop()
	mux.Close()

	log.Info("all servers shut down gracefully")
}
