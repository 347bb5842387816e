package cli

import (
	"errors"

	"github.com/felixgeelhaar/chessgate/internal/engine/runtime"
	"github.com/felixgeelhaar/chessgate/internal/journal"
	"github.com/felixgeelhaar/chessgate/pkg/config"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

// errNotInitialized is returned by commands run without an App.
var errNotInitialized = errors.New("chessgate is not initialized")

// App holds the CLI application dependencies.
type App struct {
	Config  *config.Config
	Manager *runtime.Manager

	// Journal is nil when the move journal is disabled.
	Journal journal.Store

	Health *observability.HealthRegistry
}

// NewApp creates a new CLI application.
func NewApp(cfg *config.Config, manager *runtime.Manager, store journal.Store, health *observability.HealthRegistry) *App {
	if health == nil {
		health = observability.NewHealthRegistry()
	}
	return &App{
		Config:  cfg,
		Manager: manager,
		Journal: store,
		Health:  health,
	}
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

func requireManager() (*App, error) {
	a := GetApp()
	if a == nil || a.Manager == nil {
		return nil, errNotInitialized
	}
	return a, nil
}
