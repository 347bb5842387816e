package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/chessgate/internal/engine/protocol"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// Neuronal is a neural-network engine such as Lc0, run locally over UCI or
// served over HTTP.
type Neuronal struct {
	*engineBase
}

// NewNeuronal builds a neuronal engine. It implements sdk.Constructor.
func NewNeuronal(name string, cfg sdk.EngineConfig, deps sdk.Dependencies) (sdk.Engine, error) {
	kind := strings.ToLower(cfg.GetString("protocol"))
	if kind == "" {
		kind = protocol.NameUCI
	}

	var (
		proto  protocol.Protocol
		origin sdk.Origin
		err    error
	)
	switch kind {
	case protocol.NameUCI:
		proto, err = protocol.NewUCI(cfg, deps.Logger)
		origin = sdk.OriginInternal
	case protocol.NameREST, "http":
		proto, err = protocol.NewREST(cfg, deps.Logger)
		origin = sdk.OriginExternal
	default:
		return nil, &sdk.ConfigError{
			Engine:  name,
			Field:   "protocol",
			Message: fmt.Sprintf("neuronal engines speak uci, rest or http, not %q", kind),
			Err:     sdk.ErrUnsupportedProtocol,
		}
	}
	if err != nil {
		return nil, err
	}

	base, err := newEngineBase(sdk.Descriptor{
		Name:           name,
		Kind:           sdk.KindNeuronal,
		Origin:         origin,
		ValidationMode: sdk.ValidationSchema,
		Protocol:       proto.Name(),
	}, cfg, proto, deps)
	if err != nil {
		return nil, err
	}
	return &Neuronal{engineBase: base}, nil
}

// GetMove asks the network for its best move and checks it is legal.
func (n *Neuronal) GetMove(ctx context.Context, req sdk.MoveRequest) (sdk.MoveResult, error) {
	return n.searchMove(ctx, req)
}
