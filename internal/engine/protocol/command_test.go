package protocol

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		runtime   string
		container string
		argc      int
	}{
		{"local binary", "stockfish", "", "", 1},
		{"local with args", "/usr/games/lc0 --backend=eigen", "", "", 2},
		{"docker exec", "docker exec -i stockfish-box stockfish", "docker", "stockfish-box", 5},
		{"podman exec with value flag", "podman exec -i -e OMP_NUM_THREADS=2 lc0 lc0", "podman", "lc0", 7},
		{"docker without exec", "docker run --rm -i stockfish", "", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := parseCommand(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.runtime, cmd.Runtime)
			assert.Equal(t, tt.container, cmd.Container)
			assert.Len(t, cmd.Argv, tt.argc)
		})
	}

	_, err := parseCommand("   ")
	assert.Error(t, err)

	_, err = parseCommand(`"/opt/my engine/sf`)
	assert.Error(t, err, "unterminated quote")

	_, err = parseCommand("docker exec -i")
	assert.Error(t, err)
}

func TestParseCommand_Quoting(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{`"/opt/my engine/sf" --x`, []string{"/opt/my engine/sf", "--x"}},
		{`'/opt/my engine/sf' --name 'Deep Blue'`, []string{"/opt/my engine/sf", "--name", "Deep Blue"}},
		{`/opt/my\ engine/sf`, []string{"/opt/my engine/sf"}},
		{`lc0 --weights=$WEIGHTS`, []string{"lc0", "--weights=$WEIGHTS"}},
		{`docker exec -i "engine box" stockfish`, []string{"docker", "exec", "-i", "engine box", "stockfish"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd, err := parseCommand(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Argv)
		})
	}
}

func TestResolveExecutable(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "engine")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))

	path, err := resolveExecutable(exe)
	require.NoError(t, err)
	assert.Equal(t, exe, path)

	_, err = resolveExecutable(plain)
	assert.ErrorContains(t, err, "not executable")

	_, err = resolveExecutable(dir)
	assert.ErrorContains(t, err, "not a regular file")

	_, err = resolveExecutable(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	_, err = resolveExecutable("chessgate-definitely-not-installed")
	assert.ErrorContains(t, err, "not found in PATH")
}

func TestEngineCommandCheckLocal(t *testing.T) {
	cmd, err := parseCommand(os.Args[0] + " --flag")
	require.NoError(t, err)
	assert.NoError(t, cmd.Check(context.Background()))
}
