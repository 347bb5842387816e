package mcp

import (
	"github.com/felixgeelhaar/chessgate/adapter/cli"
	"github.com/felixgeelhaar/chessgate/internal/app"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container) *cli.App {
	return cli.NewApp(container.Config, container.Manager, container.Journal, container.Health)
}
