// Package journal records every move request the gateway answers.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/chessgate/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/chessgate/internal/shared/infrastructure/database/postgres" // registers driver
	_ "github.com/felixgeelhaar/chessgate/internal/shared/infrastructure/database/sqlite"   // registers driver
)

// Outcome of a journaled request.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Entry is one journaled move request.
type Entry struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id"`
	Engine    string        `json:"engine"`
	FEN       string        `json:"fen"`
	Depth     int           `json:"depth,omitempty"`
	Move      string        `json:"move,omitempty"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Cached    bool          `json:"cached,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Query filters Recent.
type Query struct {
	Engine string
	Limit  int
}

// EngineStats summarizes journaled outcomes for one engine.
type EngineStats struct {
	Engine    string `json:"engine"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// Store persists journal entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, q Query) ([]Entry, error)
	Stats(ctx context.Context) ([]EngineStats, error)
	Ping(ctx context.Context) error
	Close() error
}

const schema = `CREATE TABLE IF NOT EXISTS move_journal (
	id          TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL,
	engine      TEXT NOT NULL,
	fen         TEXT NOT NULL,
	depth       INTEGER NOT NULL DEFAULT 0,
	move        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	cached      INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  BIGINT NOT NULL
)`

const engineIndex = `CREATE INDEX IF NOT EXISTS move_journal_engine_created ON move_journal (engine, created_at)`

const defaultLimit = 20

// SQLStore is a Store over a database.Connection.
type SQLStore struct {
	conn   database.Connection
	logger *slog.Logger
}

// Open connects to url (SQLite path or PostgreSQL URL) and prepares the schema.
func Open(ctx context.Context, url string, logger *slog.Logger) (*SQLStore, error) {
	conn, err := database.NewConnection(ctx, database.Config{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	store, err := NewSQLStore(ctx, conn, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open connection and creates the journal table.
func NewSQLStore(ctx context.Context, conn database.Connection, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range []string{schema, engineIndex} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
	}
	logger.Debug("journal ready", "driver", conn.Driver())
	return &SQLStore{conn: conn, logger: logger}, nil
}

// Record stores e, filling ID and CreatedAt when unset.
func (s *SQLStore) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cached := 0
	if e.Cached {
		cached = 1
	}

	query := s.conn.Driver().Rebind(`INSERT INTO move_journal
		(id, request_id, engine, fen, depth, move, status, error, cached, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.conn.Exec(ctx, query,
		e.ID, e.RequestID, e.Engine, e.FEN, e.Depth, e.Move, e.Status, e.Error,
		cached, e.Duration.Milliseconds(), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *SQLStore) Recent(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		where strings.Builder
		args  []any
	)
	if q.Engine != "" {
		where.WriteString(" WHERE engine = ?")
		args = append(args, q.Engine)
	}
	args = append(args, limit)

	query := s.conn.Driver().Rebind(`SELECT id, request_id, engine, fen, depth, move, status, error, cached, duration_ms, created_at
		FROM move_journal` + where.String() + ` ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			cached     int
			durationMS int64
			created    int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Engine, &e.FEN, &e.Depth, &e.Move, &e.Status, &e.Error,
			&cached, &durationMS, &created); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Cached = cached != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts outcomes per engine.
func (s *SQLStore) Stats(ctx context.Context) ([]EngineStats, error) {
	rows, err := s.conn.Query(ctx, s.conn.Driver().Rebind(`SELECT engine,
		SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = ? THEN 0 ELSE 1 END)
		FROM move_journal GROUP BY engine ORDER BY engine`), StatusOK, StatusOK)
	if err != nil {
		return nil, fmt.Errorf("query journal stats: %w", err)
	}
	defer rows.Close()

	var stats []EngineStats
	for rows.Next() {
		var st EngineStats
		if err := rows.Scan(&st.Engine, &st.Succeeded, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan journal stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the connection.
func (s *SQLStore) Close() error {
	return s.conn.Close()
}
