package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// UCIConfig is the UCI subset of an engine configuration.
type UCIConfig struct {
	Command            string        `mapstructure:"command" validate:"required"`
	Weights            string        `mapstructure:"weights"`
	Backend            string        `mapstructure:"backend"`
	Threads            int           `mapstructure:"threads" validate:"gte=0"`
	Hash               int           `mapstructure:"hash" validate:"gte=0"`
	SearchMode         string        `mapstructure:"search_mode" validate:"oneof=depth nodes movetime time"`
	DefaultDepth       int           `mapstructure:"default_depth" validate:"gte=0"`
	DefaultSearchValue int           `mapstructure:"default_search_value" validate:"gte=0"`
	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout" validate:"gt=0"`
	MoveTimeout        time.Duration `mapstructure:"move_timeout" validate:"gt=0"`
	MaxReadLines       int           `mapstructure:"max_read_lines" validate:"gt=0"`
}

const defaultSearchValue = 15

// DefaultUCIConfig returns the defaults applied before decoding.
func DefaultUCIConfig() UCIConfig {
	return UCIConfig{
		SearchMode:       "depth",
		HandshakeTimeout: 10 * time.Second,
		MoveTimeout:      30 * time.Second,
		MaxReadLines:     10000,
	}
}

type uciState int

const (
	uciNotStarted uciState = iota
	uciHandshaking
	uciReady
	uciAwaitingBestMove
	uciClosed
)

func (s uciState) String() string {
	switch s {
	case uciNotStarted:
		return "not_started"
	case uciHandshaking:
		return "handshaking"
	case uciReady:
		return "ready"
	case uciAwaitingBestMove:
		return "awaiting_bestmove"
	case uciClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const quitGrace = 5 * time.Second

// UCI drives a local engine process over stdin/stdout. All process I/O is
// serialized by mu.
type UCI struct {
	cfg     UCIConfig
	command engineCommand
	logger  *slog.Logger

	mu    sync.Mutex
	state uciState
	proc  *process
	fen   string
}

// NewUCI builds a UCI protocol from an engine configuration.
func NewUCI(cfg sdk.EngineConfig, logger *slog.Logger) (*UCI, error) {
	uc := DefaultUCIConfig()
	if err := cfg.Decode(&uc); err != nil {
		return nil, err
	}
	command, err := parseCommand(uc.Command)
	if err != nil {
		return nil, &sdk.ConfigError{Engine: cfg.Name, Field: "command", Err: err}
	}
	return &UCI{
		cfg:     uc,
		command: command,
		logger:  loggerOrDefault(logger).With("protocol", NameUCI),
	}, nil
}

// Name returns the protocol name.
func (u *UCI) Name() string { return NameUCI }

// Config returns the decoded configuration.
func (u *UCI) Config() UCIConfig { return u.cfg }

// IsInitialized reports whether the handshake completed and the process runs.
func (u *UCI) IsInitialized() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return (u.state == uciReady || u.state == uciAwaitingBestMove) && u.proc != nil && u.proc.Alive()
}

// Initialize starts the process and performs the UCI handshake.
func (u *UCI) Initialize(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ensureLocked(ctx)
}

func (u *UCI) ensureLocked(ctx context.Context) error {
	switch {
	case u.state == uciClosed:
		return sdk.ErrClosed
	case u.state != uciNotStarted && u.proc != nil && u.proc.Alive():
		return nil
	case u.proc != nil:
		u.logger.Warn("engine process exited, restarting", "state", u.state.String(), "exit", u.proc.ExitErr())
		u.discardLocked()
	}
	return u.startLocked(ctx)
}

func (u *UCI) discardLocked() {
	if u.proc != nil {
		u.proc.Kill()
		u.proc = nil
	}
	u.state = uciNotStarted
}

func (u *UCI) startLocked(ctx context.Context) error {
	proc, err := startProcess(u.command.Argv, u.logger)
	if err != nil {
		return sdk.NewTransportError(NameUCI, "start", err)
	}
	u.proc = proc
	u.state = uciHandshaking

	if err := u.handshakeLocked(ctx); err != nil {
		proc.Kill()
		u.proc = nil
		u.state = uciNotStarted
		return err
	}
	u.state = uciReady
	u.logger.Info("uci engine ready", "command", u.cfg.Command)
	return nil
}

func (u *UCI) handshakeLocked(ctx context.Context) error {
	if err := u.proc.WriteLine("uci"); err != nil {
		return err
	}
	if _, err := u.proc.ReadUntil(ctx, "uci handshake", "uciok", containsToken("uciok"), u.cfg.HandshakeTimeout, u.cfg.MaxReadLines); err != nil {
		return err
	}
	for _, opt := range u.options() {
		if err := u.proc.WriteLine(opt); err != nil {
			return err
		}
	}
	return u.syncLocked(ctx)
}

// syncLocked sends isready and waits for readyok, discarding anything the
// engine prints in between.
func (u *UCI) syncLocked(ctx context.Context) error {
	if err := u.proc.WriteLine("isready"); err != nil {
		return err
	}
	_, err := u.proc.ReadUntil(ctx, "uci isready", "readyok", containsToken("readyok"), u.cfg.HandshakeTimeout, u.cfg.MaxReadLines)
	return err
}

func (u *UCI) options() []string {
	var opts []string
	if u.cfg.Weights != "" {
		opts = append(opts, "setoption name WeightsFile value "+u.cfg.Weights)
	}
	if u.cfg.Backend != "" {
		opts = append(opts, "setoption name Backend value "+u.cfg.Backend)
	}
	if u.cfg.Threads > 0 {
		opts = append(opts, "setoption name Threads value "+strconv.Itoa(u.cfg.Threads))
	}
	if u.cfg.Hash > 0 {
		opts = append(opts, "setoption name Hash value "+strconv.Itoa(u.cfg.Hash))
	}
	return opts
}

// SendPosition sets the position and remembers it for replays.
func (u *UCI) SendPosition(ctx context.Context, fen string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensureLocked(ctx); err != nil {
		return err
	}
	u.fen = fen
	return u.proc.WriteLine("position fen " + fen)
}

// RequestMove starts a search and returns the move from the bestmove line.
// When the process is gone it is restarted, the last position replayed and
// the search retried once.
func (u *UCI) RequestMove(ctx context.Context, depth int, _ Params) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	move, err := u.searchLocked(ctx, depth)
	if err == nil || !errors.Is(err, sdk.ErrProcessExited) {
		return move, err
	}

	u.logger.Warn("engine process lost during search, retrying once", "error", err)
	u.discardLocked()
	return u.searchLocked(ctx, depth)
}

func (u *UCI) searchLocked(ctx context.Context, depth int) (string, error) {
	replay := u.fen != "" && (u.proc == nil || !u.proc.Alive())
	if err := u.ensureLocked(ctx); err != nil {
		return "", err
	}
	if replay {
		if err := u.proc.WriteLine("position fen " + u.fen); err != nil {
			return "", err
		}
	}

	if u.state == uciAwaitingBestMove {
		// A previous search timed out; stop it and resync before reuse.
		_ = u.proc.WriteLine("stop")
		if err := u.syncLocked(ctx); err != nil {
			return "", err
		}
		u.state = uciReady
	}
	u.proc.Drain()

	goCmd := u.goCommand(depth)
	if err := u.proc.WriteLine(goCmd); err != nil {
		return "", err
	}
	u.state = uciAwaitingBestMove

	line, err := u.proc.ReadUntil(ctx, "uci search", "bestmove", hasPrefix("bestmove"), u.cfg.MoveTimeout, u.cfg.MaxReadLines)
	if err != nil {
		return "", err
	}
	u.state = uciReady

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", sdk.NewTransportError(NameUCI, "search", fmt.Errorf("malformed bestmove line %q", line))
	}
	return fields[1], nil
}

// goCommand builds the search command. The same value resolution applies to
// every mode: the request depth, then default_depth, then
// default_search_value. Neuronal engines read it as a node count.
func (u *UCI) goCommand(depth int) string {
	value := strconv.Itoa(firstPositive(depth, u.cfg.DefaultDepth, u.cfg.DefaultSearchValue))
	switch u.cfg.SearchMode {
	case "nodes":
		return "go nodes " + value
	case "movetime", "time":
		return "go movetime " + value
	default:
		return "go depth " + value
	}
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return defaultSearchValue
}

// Probe checks that the engine can be launched without starting it.
func (u *UCI) Probe(ctx context.Context) error {
	if err := u.command.Check(ctx); err != nil {
		return sdk.NewTransportError(NameUCI, "probe", err)
	}
	return nil
}

// Cleanup sends quit, waits briefly and kills the process if needed. The
// protocol cannot be used afterwards.
func (u *UCI) Cleanup(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	var err error
	if u.proc != nil {
		err = u.proc.Stop(quitGrace)
		u.proc = nil
	}
	u.state = uciClosed
	return err
}

func containsToken(token string) func(string) bool {
	return func(line string) bool { return strings.Contains(line, token) }
}

func hasPrefix(prefix string) func(string) bool {
	return func(line string) bool { return strings.HasPrefix(line, prefix) }
}
