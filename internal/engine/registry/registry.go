// Package registry maps engine kinds to constructors and builds engines from
// declarative configuration.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/felixgeelhaar/chessgate/internal/engine/builtin"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// Registry holds the constructor for each engine kind.
type Registry struct {
	mu           sync.RWMutex
	constructors map[sdk.Kind]sdk.Constructor
	logger       *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		constructors: make(map[sdk.Kind]sdk.Constructor),
		logger:       logger,
	}
}

// NewDefaultRegistry creates a registry with the built-in kinds.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(sdk.KindTraditional, builtin.NewTraditional)
	r.Register(sdk.KindNeuronal, builtin.NewNeuronal)
	r.Register(sdk.KindGenerative, builtin.NewGenerative)
	return r
}

// Register binds a constructor to a kind. A second registration for the same
// kind replaces the first.
func (r *Registry) Register(kind sdk.Kind, ctor sdk.Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[kind]; exists {
		r.logger.Warn("overwriting registered engine kind", "kind", kind)
	}
	r.constructors[kind] = ctor
	r.logger.Debug("registered engine kind", "kind", kind)
}

// Lookup returns the constructor for kind.
func (r *Registry) Lookup(kind sdk.Kind) (sdk.Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.constructors[kind]
	return ctor, ok
}

// Has checks if a kind is registered.
func (r *Registry) Has(kind sdk.Kind) bool {
	_, ok := r.Lookup(kind)
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []sdk.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]sdk.Kind, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Count returns the number of registered kinds.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.constructors)
}
