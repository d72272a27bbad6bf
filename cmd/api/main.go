package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"repaytrack/internal/auth"
	"repaytrack/internal/config"
	"repaytrack/internal/logger"
	"repaytrack/internal/server"
	"repaytrack/internal/storage"
)

// @title           Repaytrack API
// @version         1.0
// @description     Tracks repayment budgets: a total amount paid off in fixed monthly installments.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := storage.Open(appConfig)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("failed to close storage: %v", err)
		}
	}()

	provider, err := auth.New(appConfig, store)
	if err != nil {
		return fmt.Errorf("failed to configure authentication: %w", err)
	}

	router, err := server.New(server.Deps{Config: appConfig, Store: store, Provider: provider})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	var background []func(context.Context) error
	if js, ok := store.(*storage.JSONStore); ok && appConfig.DataFileWatch {
		log.Infof("Watching %s for external changes", js.Path())
		background = append(background, js.Watch)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Starting repaytrack server on port %s (storage=%s, auth=%s)",
		appConfig.Port, appConfig.StorageDriver, appConfig.AuthMode)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return server.Run(ctx, ":"+appConfig.Port, router, background...)
}
