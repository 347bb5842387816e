package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/chessgate/internal/app"
	mcpinternal "github.com/felixgeelhaar/chessgate/internal/mcp"
	"github.com/felixgeelhaar/chessgate/pkg/config"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = observability.NewLogger(observability.LogConfig{
		Level:          observability.LogLevel(cfg.LogLevel),
		Format:         observability.LogFormat(cfg.LogFormat),
		Output:         os.Stdout,
		ServiceName:    "chessgate-mcp",
		ServiceVersion: cfg.Version,
	})
	if cfg.IsDevelopment() {
		logger = observability.NewLogger(observability.LogConfig{
			Level:          observability.LogLevelDebug,
			Format:         observability.LogFormat(cfg.LogFormat),
			Output:         os.Stdout,
			ServiceName:    "chessgate-mcp",
			ServiceVersion: cfg.Version,
		})
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()
	container.Start(ctx)

	cliApp := mcpinternal.NewCLIApp(container)

	if err := mcpinternal.Serve(ctx, cfg, cliApp, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
