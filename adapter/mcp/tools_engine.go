package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/chessgate/adapter/cli"
	"github.com/felixgeelhaar/chessgate/internal/engine/registry"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

type engineListInput struct {
	Kind     string `json:"kind,omitempty"`
	Origin   string `json:"origin,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}

type engineNameInput struct {
	Name string `json:"name,omitempty"`
}

// AvailabilityDTO is one row of an engines.check response.
type AvailabilityDTO struct {
	Engine  string         `json:"engine"`
	Healthy bool           `json:"healthy"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func registerEngineTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("engines.list").
		Description("List configured chess engines, optionally filtered by kind, origin or protocol").
		Handler(func(ctx context.Context, input engineListInput) ([]sdk.EngineInfo, error) {
			return listEngines(app, input)
		})

	srv.Tool("engines.info").
		Description("Show one engine's classification and state; all engines when name is empty").
		Handler(func(ctx context.Context, input engineNameInput) ([]sdk.EngineInfo, error) {
			return engineInfo(app, input)
		})

	srv.Tool("engines.matrix").
		Description("Classification matrix: kind, origin, validation mode and protocol per engine").
		Handler(func(ctx context.Context, input struct{}) ([]registry.Classification, error) {
			m, err := managerOf(app)
			if err != nil {
				return nil, err
			}
			return m.ClassificationMatrix(), nil
		})

	srv.Tool("engines.check").
		Description("Probe every engine for availability concurrently").
		Handler(func(ctx context.Context, input struct{}) ([]AvailabilityDTO, error) {
			return checkEngines(ctx, app)
		})

	srv.Tool("engines.reload").
		Description("Rebuild the engines from their configuration files; the previous set stays on failure").
		Handler(func(ctx context.Context, input struct{}) (map[string]any, error) {
			m, err := managerOf(app)
			if err != nil {
				return nil, err
			}
			if err := m.Reload(ctx); err != nil {
				return nil, err
			}
			return map[string]any{"engines": m.ListEngines()}, nil
		})

	return nil
}

func listEngines(app *cli.App, input engineListInput) ([]sdk.EngineInfo, error) {
	m, err := managerOf(app)
	if err != nil {
		return nil, err
	}

	keep := func(names []string) map[string]bool {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
		return set
	}
	var filters []map[string]bool
	if input.Kind != "" {
		filters = append(filters, keep(m.FilterByKind(sdk.Kind(input.Kind))))
	}
	if input.Origin != "" {
		filters = append(filters, keep(m.FilterByOrigin(sdk.Origin(input.Origin))))
	}
	if input.Protocol != "" {
		filters = append(filters, keep(m.FilterByProtocol(input.Protocol)))
	}

	infos := m.GetEngineInfo()
	out := make([]sdk.EngineInfo, 0, len(infos))
next:
	for _, info := range infos {
		for _, f := range filters {
			if !f[info.Name] {
				continue next
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func engineInfo(app *cli.App, input engineNameInput) ([]sdk.EngineInfo, error) {
	m, err := managerOf(app)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return m.GetEngineInfo(), nil
	}
	info, err := m.EngineInfo(input.Name)
	if err != nil {
		return nil, err
	}
	return []sdk.EngineInfo{info}, nil
}

func checkEngines(ctx context.Context, app *cli.App) ([]AvailabilityDTO, error) {
	m, err := managerOf(app)
	if err != nil {
		return nil, err
	}
	report := m.CheckAllAvailability(ctx)

	rows := make([]AvailabilityDTO, 0, len(report))
	for _, name := range m.ListEngines() {
		status, ok := report[name]
		if !ok {
			continue
		}
		rows = append(rows, AvailabilityDTO{
			Engine:  name,
			Healthy: status.Healthy,
			Message: status.Message,
			Details: status.Details,
		})
	}
	return rows, nil
}
