package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"aqi-explorer/internal/app"
	"aqi-explorer/internal/config"
	"aqi-explorer/internal/logging"
)

const appName = "aqi-server"

// Version is "dev" unless set with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, Version, appName)
	slog.SetDefault(logger)

	logger.Info("starting",
		"version", Version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, Version, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "err", err)
		stop()
		os.Exit(1)
	}

	logger.Info("shutting down")
}
