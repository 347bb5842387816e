package mcp

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/chessgate/adapter/cli"
	"github.com/felixgeelhaar/chessgate/internal/engine/runtime"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/internal/journal"
)

type bestMoveInput struct {
	Engine      string `json:"engine" jsonschema:"required"`
	FEN         string `json:"fen" jsonschema:"required"`
	Depth       int    `json:"depth,omitempty"`
	MoveHistory string `json:"move_history,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	Explain     bool   `json:"explain,omitempty"`
	MaxRetries  int    `json:"max_retries,omitempty"`
}

type compareInput struct {
	FEN   string `json:"fen" jsonschema:"required"`
	Depth int    `json:"depth,omitempty"`
}

type historyInput struct {
	Engine string `json:"engine,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// MoveDTO is the move.best response.
type MoveDTO struct {
	Engine      string `json:"engine"`
	Move        string `json:"move"`
	Explanation string `json:"explanation,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

// CompareDTO is the move.compare response.
type CompareDTO struct {
	Results   map[string]string `json:"results"`
	Consensus string            `json:"consensus,omitempty"`
	Agreeing  int               `json:"agreeing,omitempty"`
}

func registerMoveTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("move.best").
		Description("Ask one engine for the best move in a FEN position. The move is verified legal before it is returned").
		Handler(func(ctx context.Context, input bestMoveInput) (*MoveDTO, error) {
			return bestMove(ctx, app, input)
		})

	srv.Tool("move.compare").
		Description("Ask every engine for a move in parallel. Values are the move, 'ERROR: <msg>' or 'UNAVAILABLE'").
		Handler(func(ctx context.Context, input compareInput) (*CompareDTO, error) {
			return compareMoves(ctx, app, input)
		})

	srv.Tool("move.history").
		Description("Recently journaled move requests, newest first").
		Handler(func(ctx context.Context, input historyInput) ([]journal.Entry, error) {
			if app == nil || app.Journal == nil {
				return nil, errJournalUnavailable
			}
			return app.Journal.Recent(ctx, journal.Query{Engine: input.Engine, Limit: clampLimit(input.Limit)})
		})

	return nil
}

func bestMove(ctx context.Context, app *cli.App, input bestMoveInput) (*MoveDTO, error) {
	m, err := managerOf(app)
	if err != nil {
		return nil, err
	}
	engine, err := requireString("engine", input.Engine)
	if err != nil {
		return nil, err
	}
	fen, err := requireString("fen", input.FEN)
	if err != nil {
		return nil, err
	}
	depth, err := depthPtr(input.Depth)
	if err != nil {
		return nil, err
	}

	res, err := m.GetMove(ctx, engine, sdk.MoveRequest{
		FEN:   fen,
		Depth: depth,
		Context: sdk.MoveContext{
			MoveHistory: input.MoveHistory,
			Strategy:    input.Strategy,
			Explanation: input.Explain,
			MaxRetries:  input.MaxRetries,
		},
	})
	if err != nil {
		return nil, err
	}
	return &MoveDTO{
		Engine:      engine,
		Move:        res.Move,
		Explanation: res.Explanation,
		RawResponse: res.RawResponse,
	}, nil
}

func compareMoves(ctx context.Context, app *cli.App, input compareInput) (*CompareDTO, error) {
	m, err := managerOf(app)
	if err != nil {
		return nil, err
	}
	fen, err := requireString("fen", input.FEN)
	if err != nil {
		return nil, err
	}
	depth, err := depthPtr(input.Depth)
	if err != nil {
		return nil, err
	}

	results := m.CompareEngines(ctx, fen, depth)

	counts := make(map[string]int)
	for _, v := range results {
		if v == runtime.UnavailableMarker || strings.HasPrefix(v, runtime.ErrorPrefix) {
			continue
		}
		counts[v]++
	}
	dto := &CompareDTO{Results: results}
	for move, n := range counts {
		if n > dto.Agreeing || (n == dto.Agreeing && move < dto.Consensus) {
			dto.Consensus, dto.Agreeing = move, n
		}
	}
	return dto, nil
}
