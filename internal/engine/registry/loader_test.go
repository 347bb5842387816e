package registry

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestLoader(logOut *bytes.Buffer) *Loader {
	logger := observability.Discard()
	if logOut != nil {
		logger = observability.NewLogger(observability.LogConfig{Output: logOut})
	}
	f := NewFactory(NewDefaultRegistry(logger), sdk.Dependencies{Logger: logger})
	return NewLoader(f, logger)
}

const traditionalSource = `
engines:
  stockfish:
    command: stockfish
    default_depth: 12
  cloud:
    url: http://engine.local/move
    extract: $.bestmove
`

func TestLoader_LoadSource(t *testing.T) {
	t.Setenv("CHESSGATE_TEST_ENGINE_BIN", "/opt/engines/stockfish")
	dir := t.TempDir()
	path := writeSource(t, dir, "engines.yaml", `
engines:
  stockfish:
    command: ${CHESSGATE_TEST_ENGINE_BIN}
    threads: ${CHESSGATE_TEST_THREADS:4}
  broken:
    kind: neuronal
    protocol: grpc
`)

	engines, err := newTestLoader(nil).LoadSource(path)
	require.NoError(t, err)
	require.Equal(t, []string{"stockfish"}, Names(engines))

	cfg := engines["stockfish"].(interface{ Config() sdk.EngineConfig }).Config()
	assert.Equal(t, "/opt/engines/stockfish", cfg.GetString("command"))
	assert.Equal(t, 4, cfg.GetInt("threads"))
	assert.Equal(t, "stockfish", cfg.GetString("name"))
}

func TestLoader_ReadSourceInterpolatesBeforeParsing(t *testing.T) {
	t.Setenv("CHESSGATE_TEST_ENGINE_NAME", "house-engine")
	t.Setenv("CHESSGATE_TEST_PARAMS", "{fen: '{fen}', multiPv: 2}")
	dir := t.TempDir()
	path := writeSource(t, dir, "engines.yaml", `
engines:
  ${CHESSGATE_TEST_ENGINE_NAME}:
    url: http://engine.local/eval
    params: ${CHESSGATE_TEST_PARAMS}
    timeout: ${CHESSGATE_TEST_TIMEOUT:20}
`)

	configs, err := newTestLoader(nil).ReadSource(path)
	require.NoError(t, err)
	require.Contains(t, configs, "house-engine")

	cfg := configs["house-engine"]
	assert.Equal(t, map[string]any{"fen": "{fen}", "multiPv": 2}, cfg["params"])
	assert.Equal(t, 20, cfg["timeout"])
}

func TestLoader_LoadSourceErrors(t *testing.T) {
	dir := t.TempDir()
	l := newTestLoader(nil)

	_, err := l.LoadSource(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeSource(t, dir, "bad.yaml", "engines: [unclosed")
	_, err = l.LoadSource(bad)
	assert.True(t, sdk.IsConfigError(err))
}

func TestLoader_LoadSources(t *testing.T) {
	t.Run("duplicate names across sources", func(t *testing.T) {
		dir := t.TempDir()
		a := writeSource(t, dir, "a.yaml", traditionalSource)
		b := writeSource(t, dir, "b.yaml", "engines:\n  stockfish:\n    command: stockfish-17\n")

		_, err := newTestLoader(nil).LoadSources([]string{a, b})
		require.Error(t, err)

		var dup *sdk.DuplicateEngineError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, b, dup.Source)
		assert.Equal(t, []string{"stockfish"}, dup.Names)
		assert.True(t, sdk.IsConfigError(err))
	})

	t.Run("missing source is skipped", func(t *testing.T) {
		dir := t.TempDir()
		a := writeSource(t, dir, "a.yaml", traditionalSource)
		var logs bytes.Buffer

		engines, err := newTestLoader(&logs).LoadSources([]string{a, filepath.Join(dir, "llm.yaml")})
		require.NoError(t, err)

		assert.Equal(t, []string{"cloud", "stockfish"}, Names(engines))
		assert.Contains(t, logs.String(), "engine config not found")
	})

	t.Run("merges sources", func(t *testing.T) {
		dir := t.TempDir()
		a := writeSource(t, dir, "a.yaml", traditionalSource)
		b := writeSource(t, dir, "b.yaml", `
engines:
  llama:
    provider: local
    endpoint: http://localhost:11434
    model: llama3
`)

		engines, err := newTestLoader(nil).LoadSources([]string{a, b})
		require.NoError(t, err)
		assert.Equal(t, []string{"cloud", "llama", "stockfish"}, Names(engines))
		assert.Equal(t, sdk.KindGenerative, engines["llama"].Descriptor().Kind)
	})

	t.Run("directory sources", func(t *testing.T) {
		dir := t.TempDir()
		writeSource(t, dir, "10-engines.yaml", traditionalSource)
		writeSource(t, dir, "20-llm.yml", "engines:\n  llama:\n    provider: local\n    endpoint: http://localhost:8080\n")
		writeSource(t, dir, "README.md", "not a source")

		l := newTestLoader(nil)
		assert.Equal(t, []string{
			filepath.Join(dir, "10-engines.yaml"),
			filepath.Join(dir, "20-llm.yml"),
		}, l.ExpandSources([]string{dir}))

		engines, err := l.LoadSources([]string{dir})
		require.NoError(t, err)
		assert.Len(t, engines, 3)
	})
}
