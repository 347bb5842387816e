package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/chessgate/adapter/cli"
	"github.com/felixgeelhaar/chessgate/internal/engine/runtime"
)

const maxHistoryLimit = 200

var (
	errManagerUnavailable = errors.New("engine manager not available")
	errJournalUnavailable = errors.New("move journal not configured")
)

func managerOf(app *cli.App) (*runtime.Manager, error) {
	if app == nil || app.Manager == nil {
		return nil, errManagerUnavailable
	}
	return app.Manager, nil
}

func requireString(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	return value, nil
}

// depthPtr maps the tool convention (0 means engine default) to a request depth.
func depthPtr(depth int) (*int, error) {
	if depth < 0 {
		return nil, fmt.Errorf("depth must not be negative, got %d", depth)
	}
	if depth == 0 {
		return nil, nil
	}
	return &depth, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}
