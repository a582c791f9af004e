package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"medpassport/internal/cli"
	"medpassport/internal/config"
	"medpassport/internal/errors"
)

func main() {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Only the log level is applied live; everything else needs a restart.
	config.WatchConfig(func(updated *config.Config) {
		if err := logger.SetLevel(updated.App.LogLevel); err != nil {
			logger.LogError(err, "Ignoring invalid log level from config file")
			return
		}
		logger.Info("Log level updated", "log_level", updated.App.LogLevel)
	})

	logger.Debug("Starting medpassport",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"parser_mode", cfg.Parser.Mode)

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Application execution failed")
		os.Exit(1)
	}
}
