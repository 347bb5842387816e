package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/chessgate/adapter/cli"
)

// ToolDependencies provides the application to MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	if err := registerEngineTools(srv, deps); err != nil {
		return err
	}
	if err := registerMoveTools(srv, deps); err != nil {
		return err
	}
	return nil
}
