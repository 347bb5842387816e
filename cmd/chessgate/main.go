package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/chessgate/adapter/cli"
	"github.com/felixgeelhaar/chessgate/adapter/cli/mcp"
	"github.com/felixgeelhaar/chessgate/internal/app"
	mcpinternal "github.com/felixgeelhaar/chessgate/internal/mcp"
	"github.com/felixgeelhaar/chessgate/pkg/config"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:          observability.LogLevel(cfg.LogLevel),
		Format:         observability.LogFormat(cfg.LogFormat),
		Output:         os.Stderr,
		ServiceName:    "chessgate",
		ServiceVersion: cli.Version,
	})
	slog.SetDefault(logger)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	container.Start(ctx)

	cli.SetApp(mcpinternal.NewCLIApp(container))
	cli.AddCommand(mcp.Cmd)

	err = cli.ExecuteContext(ctx)
	container.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
