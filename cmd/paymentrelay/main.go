package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cartloom/payment-relay/config"
	"github.com/cartloom/payment-relay/internal/api"
	"github.com/cartloom/payment-relay/internal/events"
	"github.com/cartloom/payment-relay/internal/fulfillment"
	"github.com/cartloom/payment-relay/internal/gateway"
	"github.com/cartloom/payment-relay/internal/logger"
	"github.com/cartloom/payment-relay/internal/mailer"
	"github.com/cartloom/payment-relay/internal/metrics"
	middlewares "github.com/cartloom/payment-relay/internal/middleware"
	"github.com/cartloom/payment-relay/internal/ratelimit"
	"github.com/cartloom/payment-relay/internal/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting payment relay",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize order store
	orderStore, err := store.New(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to initialize order store", "error", err)
	}
	if closer, ok := orderStore.(interface{ Close(context.Context) error }); ok {
		defer closer.Close(ctx)
	}

	// Initialize gateway client
	paystack := gateway.NewPaystack(cfg.Gateway)

	// Initialize confirmation mailer
	mail := mailer.New(cfg.Mail)

	// Initialize event publisher
	publisher, err := events.New(cfg.Events)
	if err != nil {
		logger.Fatal("Failed to connect event publisher", "error", err)
	}
	defer publisher.Close()

	// Initialize fulfillment processor
	processor := fulfillment.NewProcessor(orderStore, mail, publisher)

	// Initialize rate limiter (optional, Redis-backed)
	var initLimit func(http.Handler) http.Handler
	if cfg.Redis.URL != "" {
		limiter, err := ratelimit.NewManager(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect rate limiter", "error", err)
		}
		defer limiter.Close()
		initLimit = middlewares.RateLimit(limiter, cfg.RateLimit.InitializeRPM)
		logger.Info("Rate limiting enabled", "rpm", cfg.RateLimit.InitializeRPM)
	}

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)

	// Initialize API handlers
	apiHandler := api.NewHandler(orderStore, paystack, processor, cfg, initLimit, Version, BuildTime, GitCommit)
	apiHandler.RegisterRoutes(r)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
