package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cotpulse/internal/app"
	"cotpulse/internal/config"
	"cotpulse/internal/infrastructure"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer infrastructure.CloseLogFile()

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, paths, logger)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}
