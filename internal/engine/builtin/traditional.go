package builtin

import (
	"context"

	"github.com/felixgeelhaar/chessgate/internal/engine/protocol"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// Traditional is a classic search engine reached over UCI (command) or
// REST (url).
type Traditional struct {
	*engineBase
}

// NewTraditional builds a traditional engine. It implements sdk.Constructor.
func NewTraditional(name string, cfg sdk.EngineConfig, deps sdk.Dependencies) (sdk.Engine, error) {
	var (
		proto  protocol.Protocol
		origin sdk.Origin
		err    error
	)
	switch {
	case cfg.Has("command"):
		proto, err = protocol.NewUCI(cfg, deps.Logger)
		origin = sdk.OriginInternal
	case cfg.Has("url"):
		proto, err = protocol.NewREST(cfg, deps.Logger)
		origin = sdk.OriginExternal
	default:
		return nil, sdk.NewConfigError(name, "command", "traditional engines need a command or a url")
	}
	if err != nil {
		return nil, err
	}

	base, err := newEngineBase(sdk.Descriptor{
		Name:           name,
		Kind:           sdk.KindTraditional,
		Origin:         origin,
		ValidationMode: sdk.ValidationSchema,
		Protocol:       proto.Name(),
	}, cfg, proto, deps)
	if err != nil {
		return nil, err
	}
	return &Traditional{engineBase: base}, nil
}

// GetMove asks the backend for its best move and checks it is legal.
func (t *Traditional) GetMove(ctx context.Context, req sdk.MoveRequest) (sdk.MoveResult, error) {
	return t.searchMove(ctx, req)
}
