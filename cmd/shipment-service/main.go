package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ups-tracking/ups-api/internal/app"
	"github.com/ups-tracking/ups-api/internal/config"
	"github.com/ups-tracking/ups-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(
		logger.Config{
			Service:  cfg.App.Name,
			Env:      cfg.Env,
			Filename: cfg.Logger.Filename,
		},
		logger.WithLevel(logger.ParseLevel(cfg.Logger.Level)),
		logger.MaxSize(cfg.Logger.MaxSize),
		logger.MaxBackups(cfg.Logger.MaxBackups),
		logger.MaxAge(cfg.Logger.MaxAge),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Infow("application starting",
		"env", cfg.Env,
		"version", cfg.App.Version,
		"store", cfg.Store.Driver,
		"status_policy", cfg.Tracking.StatusPolicy,
	)

	if err = app.Run(ctx, cfg, log); err != nil {
		log.Errorw("application failed", "error", err)
		cancel()
		_ = log.Sync()
		os.Exit(1)
	}

	log.Infow("application exited normally")
}
