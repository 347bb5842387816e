package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/chessgate/internal/journal"
)

// RegisterResources registers MCP resources that expose chessgate state.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("chessgate://engines").
		Name("Engines").
		Description("Configured engines with their classification and last known availability").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			m, err := managerOf(app)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, m.GetEngineInfo())
		})

	srv.Resource("chessgate://engines/matrix").
		Name("Classification Matrix").
		Description("Kind, origin, validation mode and protocol per engine").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			m, err := managerOf(app)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, m.ClassificationMatrix())
		})

	srv.Resource("chessgate://history").
		Name("Move History").
		Description("The most recent journaled move requests").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Journal == nil {
				return nil, errJournalUnavailable
			}
			entries, err := app.Journal.Recent(ctx, journal.Query{Limit: 50})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, entries)
		})

	srv.Resource("chessgate://history/stats").
		Name("Move Statistics").
		Description("Succeeded and failed move requests per engine").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Journal == nil {
				return nil, errJournalUnavailable
			}
			stats, err := app.Journal.Stats(ctx)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, stats)
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
