package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paystack-storefront/internal/client"
	"paystack-storefront/internal/config"
	"paystack-storefront/internal/pkg/log"
	"paystack-storefront/internal/repository"
	"paystack-storefront/internal/server"
	"paystack-storefront/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		// Fail fast in development; in production the gateway degrades to a
		// disabled payment option instead of crashing the storefront.
		if cfg.Environment.IsDevelopment() {
			logger.Fatalw("invalid configuration", "error", err)
		}
		logger.Errorw("invalid configuration, paystack gateway disabled", "error", err)
		cfg.Paystack.Enabled = false
	}

	db, err := client.InitDBClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("init database", "error", err)
	}

	saleorClient := client.NewSaleorClient(cfg.Saleor.APIURL)
	paystackClient := client.NewPaystackClient(&cfg.Paystack)

	sessionRepo := repository.NewSessionRepository(db)
	callbackEventRepo := repository.NewCallbackEventRepository(db)

	converter, err := service.NewCurrencyConverter(&cfg.Paystack)
	if err != nil {
		logger.Fatalw("init currency converter", "error", err)
	}

	paymentService := service.NewPaymentService(
		db, logger,
		saleorClient, paystackClient,
		sessionRepo, callbackEventRepo,
		converter,
		&cfg.Paystack,
		cfg.BaseURL,
		cfg.Saleor.DefaultChannel,
	)
	checkoutService := service.NewCheckoutService(saleorClient, &cfg.Paystack, converter)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(cfg, paymentService, checkoutService)

	logger.Infow("starting HTTP server", "addr", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("HTTP server error", "error", err)
		}
	}()

	// Abandoned payment sessions are harmless but pile up; sweep them.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				purged, err := sessionRepo.PurgeStale(sweepCtx, cfg.Session.TTL)
				if err != nil {
					logger.Errorw("purge stale sessions", "error", err)
				} else if purged > 0 {
					logger.Infow("purged stale sessions", "count", purged)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalw("HTTP server shutdown error", "error", err)
	}
}
