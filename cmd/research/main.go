// Command research runs an interactive terminal session against the
// deep-research agent.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yukot/deepagent/interactive"
	"github.com/yukot/deepagent/internal/app"
	"github.com/yukot/deepagent/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := config.Load(os.Getenv("DEEPAGENT_CONFIG"))
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	harness, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer harness.Close(context.Background())

	session := interactive.New(harness.Agent(), interactive.WithLogger(logger))
	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("session failed", "err", err)
		os.Exit(1)
	}
}
