package mcp

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/felixgeelhaar/mcp-go/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/chessgate/adapter/cli"
	"github.com/felixgeelhaar/chessgate/pkg/config"
)

func TestServe_RequiresDependencies(t *testing.T) {
	ctx := context.Background()

	assert.EqualError(t, Serve(ctx, nil, &cli.App{}, nil), "config is required")
	assert.EqualError(t, Serve(ctx, &config.Config{}, nil, nil), "CLI app is required")
}

func TestMCPLogger(t *testing.T) {
	var buf bytes.Buffer
	l := mcpLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("tool called", middleware.Field{Key: "tool", Value: "move.best"})
	l.Warn("slow tool", middleware.Field{Key: "duration_ms", Value: 1200})

	assert.Contains(t, buf.String(), "tool=move.best")
	assert.Contains(t, buf.String(), "duration_ms=1200")
	assert.Len(t, fieldsToArgs([]middleware.Field{{Key: "a", Value: 1}, {Key: "b", Value: 2}}), 4)
}
