package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

const lineBuffer = 1024

// process is an engine subprocess owned by exactly one protocol instance.
// A reader goroutine feeds stdout lines into a channel; the channel closes
// when the process stops writing or the process is stopped. A separate
// waiter records the exit, so Alive turns false even while unread lines
// are pending.
type process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan string
	exited  chan struct{}
	stopped chan struct{}
	logger  *slog.Logger

	writeMu  sync.Mutex
	stopOnce sync.Once
	exitErr  error
}

func startProcess(argv []string, logger *slog.Logger) (*process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	// The process outlives the request that started it, so it is not bound
	// to a request context.
	// #nosec G204 -- argv comes from operator configuration
	cmd := exec.Command(argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	// Stderr stays nil (the null device): cmd.Wait is never called, so no
	// copying goroutine may depend on it.
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan string, lineBuffer),
		exited:  make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go p.read(stdout)
	go p.wait()
	return p, nil
}

func (p *process) read(stdout io.ReadCloser) {
	defer close(p.lines)
	defer stdout.Close()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case p.lines <- strings.TrimSpace(scanner.Text()):
		case <-p.stopped:
			return
		}
	}
}

func (p *process) wait() {
	state, err := p.cmd.Process.Wait()
	if err == nil && !state.Success() {
		err = &exec.ExitError{ProcessState: state}
	}
	p.exitErr = err
	close(p.exited)
}

// ExitErr returns how the process ended: nil for a clean exit or while it
// still runs.
func (p *process) ExitErr() error {
	select {
	case <-p.exited:
		return p.exitErr
	default:
		return nil
	}
}

// exitedError describes a process that went away, with its exit status
// when known.
func (p *process) exitedError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	select {
	case <-p.exited:
	case <-time.After(exitStatusWait):
	}
	if err := p.ExitErr(); err != nil {
		return fmt.Errorf("%w %s: %v", sdk.ErrProcessExited, msg, err)
	}
	return fmt.Errorf("%w %s", sdk.ErrProcessExited, msg)
}

const exitStatusWait = 100 * time.Millisecond

// Alive reports whether the process is still running.
func (p *process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// WriteLine sends one command line to the engine.
func (p *process) WriteLine(line string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if !p.Alive() {
		return p.exitedError("before write %q", line)
	}
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: write %q: %v", sdk.ErrProcessExited, line, err)
	}
	p.logger.Debug("uci >", "line", line)
	return nil
}

// ReadUntil consumes lines until match returns true and returns the matching
// line. It gives up after timeout or maxLines lines, reporting what was seen.
func (p *process) ReadUntil(ctx context.Context, operation, expected string, match func(string) bool, timeout time.Duration, maxLines int) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var seen []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", &sdk.TimeoutError{Operation: operation, Expected: expected, Timeout: timeout, Lines: seen}
		case line, ok := <-p.lines:
			if !ok {
				return "", p.exitedError("while waiting for %q after %d lines", expected, len(seen))
			}
			p.logger.Debug("uci <", "line", line)
			if match(line) {
				return line, nil
			}
			seen = append(seen, line)
			if maxLines > 0 && len(seen) >= maxLines {
				return "", sdk.NewTransportError(NameUCI, operation,
					fmt.Errorf("no %q within %d lines", expected, maxLines))
			}
		}
	}
}

// Drain discards lines already buffered.
func (p *process) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-p.lines:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Stop asks the engine to quit and kills it after grace. The process must
// not be used afterwards.
func (p *process) Stop(grace time.Duration) error {
	if !p.Alive() {
		p.release()
		return nil
	}
	_ = p.WriteLine("quit")
	// Unblocks the reader so a chatty engine is never stuck writing.
	p.release()

	select {
	case <-p.exited:
		return nil
	case <-time.After(grace):
	}
	p.logger.Warn("engine did not quit in time, killing", "grace", grace)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill engine: %w", err)
	}
	<-p.exited
	return nil
}

// Kill terminates the process immediately. The process must not be used
// afterwards.
func (p *process) Kill() {
	if p.Alive() && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.release()
}

// release stops the reader and closes stdin.
func (p *process) release() {
	p.stopOnce.Do(func() {
		close(p.stopped)
		_ = p.stdin.Close()
	})
}
