package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chessgate/adapter/cli"
	mcpinternal "github.com/felixgeelhaar/chessgate/internal/mcp"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := cli.GetApp()
		if a == nil || a.Config == nil {
			return errors.New("chessgate is not initialized")
		}

		cfg := *a.Config
		if serveAddr != "" {
			cfg.MCPAddr = serveAddr
		}

		err := mcpinternal.Serve(cmd.Context(), &cfg, a, slog.Default())
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to MCP_ADDR)")
}
