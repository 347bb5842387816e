package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/config"
)

// sourceFile is the top-level shape of an engine configuration source.
type sourceFile struct {
	Engines map[string]map[string]any `yaml:"engines"`
}

// Loader reads engine configuration sources and builds engines through a
// Factory.
type Loader struct {
	factory *Factory
	logger  *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(factory *Factory, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{factory: factory, logger: logger}
}

// ReadSource resolves ${VAR} placeholders in one YAML source and parses it.
// Placeholders are expanded in the raw text, so they may appear in keys or
// expand to YAML structure.
func (l *Loader) ReadSource(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read engine config %s: %w", path, err)
	}
	text := config.InterpolateString(string(data))

	var doc sourceFile
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &sdk.ConfigError{Message: fmt.Sprintf("parse %s", path), Err: err}
	}

	configs := make(map[string]map[string]any, len(doc.Engines))
	for name, raw := range doc.Engines {
		if raw == nil {
			raw = map[string]any{}
		}
		configs[name] = raw
	}
	return configs, nil
}

// LoadSource builds the engines of a single source. A missing or unparsable
// file is an error; engines that fail to build are skipped.
func (l *Loader) LoadSource(path string) (map[string]sdk.Engine, error) {
	configs, err := l.ReadSource(path)
	if err != nil {
		return nil, err
	}
	engines := l.factory.CreateFromMap(configs)
	l.logger.Info("engine config loaded", "path", path, "engines", len(engines))
	return engines, nil
}

// LoadSources merges several sources. Directories are expanded to the YAML
// files they contain. Missing sources are skipped with a warning; an engine
// name declared by more than one source is an error.
func (l *Loader) LoadSources(paths []string) (map[string]sdk.Engine, error) {
	merged := make(map[string]map[string]any)

	for _, path := range l.ExpandSources(paths) {
		configs, err := l.ReadSource(path)
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("engine config not found, skipping", "path", path)
			continue
		}
		if err != nil {
			return nil, err
		}

		var dups []string
		for name := range configs {
			if _, exists := merged[name]; exists {
				dups = append(dups, name)
			}
		}
		if len(dups) > 0 {
			sort.Strings(dups)
			return nil, &sdk.DuplicateEngineError{Source: path, Names: dups}
		}

		for name, raw := range configs {
			merged[name] = raw
		}
		l.logger.Debug("engine config read", "path", path, "engines", len(configs))
	}

	engines := l.factory.CreateFromMap(merged)
	l.logger.Info("engine configs loaded", "sources", len(paths), "engines", len(engines))
	return engines, nil
}

// ExpandSources replaces directory entries with the *.yaml and *.yml files
// they contain, in name order. Other entries are kept as given.
func (l *Loader) ExpandSources(paths []string) []string {
	var out []string
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			out = append(out, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			l.logger.Warn("failed to read engine config directory", "path", path, "error", err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".yaml", ".yml":
				out = append(out, filepath.Join(path, entry.Name()))
			}
		}
	}
	return out
}
