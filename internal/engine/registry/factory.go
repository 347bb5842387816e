package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// Factory builds engines from raw configuration maps.
type Factory struct {
	registry *Registry
	deps     sdk.Dependencies
	logger   *slog.Logger
}

// NewFactory creates a factory over a registry. deps are handed to every
// constructor.
func NewFactory(registry *Registry, deps sdk.Dependencies) *Factory {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
		deps.Logger = logger
	}
	return &Factory{registry: registry, deps: deps, logger: logger}
}

// ResolveKind returns the kind a configuration asks for, explicitly or by
// inference.
func (f *Factory) ResolveKind(name string, raw map[string]any) sdk.Kind {
	if declared := explicitKind(raw); declared != "" {
		return NormalizeKind(declared)
	}
	kind, rule, ok := InferKind(raw)
	if !ok {
		f.logger.Warn("could not infer engine kind, assuming traditional",
			"engine", name,
			"keys", sortedKeys(raw),
		)
		return kind
	}
	f.logger.Debug("inferred engine kind", "engine", name, "kind", kind, "rule", rule)
	return kind
}

// Create builds one engine. The configuration is copied and gains a name key.
func (f *Factory) Create(name string, raw map[string]any) (sdk.Engine, error) {
	kind := f.ResolveKind(name, raw)
	ctor, ok := f.registry.Lookup(kind)
	if !ok {
		return nil, &sdk.ConfigError{
			Engine:  name,
			Field:   "kind",
			Message: fmt.Sprintf("%q (registered: %v)", kind, f.registry.Kinds()),
			Err:     sdk.ErrUnknownKind,
		}
	}

	withName := make(map[string]any, len(raw)+1)
	maps.Copy(withName, raw)
	withName["name"] = name

	engine, err := ctor(name, sdk.NewEngineConfig(name, withName), f.deps)
	if err != nil {
		return nil, err
	}
	d := engine.Descriptor()
	f.logger.Info("engine created",
		"engine", name,
		"kind", d.Kind,
		"origin", d.Origin,
		"protocol", d.Protocol,
	)
	return engine, nil
}

// CreateFromMap builds every configured engine. Engines that fail to build
// are logged and left out.
func (f *Factory) CreateFromMap(configs map[string]map[string]any) map[string]sdk.Engine {
	engines := make(map[string]sdk.Engine, len(configs))
	for _, name := range sortedKeys(configs) {
		engine, err := f.Create(name, configs[name])
		if err != nil {
			f.logger.Error("failed to create engine", "engine", name, "error", err)
			continue
		}
		engines[name] = engine
	}
	f.logger.Info("engines created", "created", len(engines), "configured", len(configs))
	return engines
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
