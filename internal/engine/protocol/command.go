package protocol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

var containerRuntimes = map[string]bool{"docker": true, "podman": true}

// Flags of "<runtime> exec" that consume the following argument.
var execValueFlags = map[string]bool{
	"-e": true, "--env": true, "--env-file": true,
	"-u": true, "--user": true,
	"-w": true, "--workdir": true,
	"--detach-keys": true,
}

// engineCommand is a parsed UCI launch command.
type engineCommand struct {
	Argv      []string
	Runtime   string
	Container string
}

// parseCommand splits a command with shell quoting rules and recognises
// "docker exec"/"podman exec" invocations. Variables are not expanded.
func parseCommand(command string) (engineCommand, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return engineCommand{}, fmt.Errorf("parse command: %w", err)
	}
	if len(argv) == 0 {
		return engineCommand{}, errors.New("command is empty")
	}
	cmd := engineCommand{Argv: argv}

	runtime := filepath.Base(argv[0])
	if !containerRuntimes[runtime] || len(argv) < 3 || argv[1] != "exec" {
		return cmd, nil
	}
	for i := 2; i < len(argv); i++ {
		arg := argv[i]
		if strings.HasPrefix(arg, "-") {
			if execValueFlags[arg] {
				i++
			}
			continue
		}
		cmd.Runtime = runtime
		cmd.Container = arg
		break
	}
	if cmd.Container == "" {
		return engineCommand{}, fmt.Errorf("%s exec without a container name", runtime)
	}
	return cmd, nil
}

// IsContainer reports whether the engine runs inside a container.
func (c engineCommand) IsContainer() bool {
	return c.Container != ""
}

// Check verifies the command can be launched: the container runtime answers
// and the container is running, or the local executable exists.
func (c engineCommand) Check(ctx context.Context) error {
	if c.IsContainer() {
		return c.checkContainer(ctx)
	}
	_, err := resolveExecutable(c.Argv[0])
	return err
}

func (c engineCommand) checkContainer(ctx context.Context) error {
	// #nosec G204 -- runtime is restricted to docker or podman
	out, err := exec.CommandContext(ctx, c.Runtime, "ps", "--format", "{{.Names}}").Output()
	if err != nil {
		return fmt.Errorf("%s ps: %w", c.Runtime, err)
	}
	for _, name := range strings.Fields(string(out)) {
		if name == c.Container {
			return nil
		}
	}
	return fmt.Errorf("container %s is not running", c.Container)
}

// resolveExecutable finds name in PATH, or checks an explicit path for
// existence and execute permission.
func resolveExecutable(name string) (string, error) {
	if !strings.ContainsRune(name, os.PathSeparator) {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("executable %q not found in PATH: %w", name, err)
		}
		return path, nil
	}

	clean := filepath.Clean(name)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("executable %q: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("executable %q is not a regular file", name)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("executable %q is not executable", name)
	}
	return clean, nil
}
