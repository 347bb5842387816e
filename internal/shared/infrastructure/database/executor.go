package database

import (
	"context"
	"database/sql"
)

// Row is a single result row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a cursor over result rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result is what Exec reports.
type Result interface {
	RowsAffected() (int64, error)
}

// Connection is the driver-independent handle the journal runs queries on.
type Connection interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Ping(ctx context.Context) error
	Close() error
	Driver() Driver
}

// WrapSQLResult adapts a sql.Result.
func WrapSQLResult(r sql.Result) Result {
	return r
}

// WrapSQLRows adapts *sql.Rows.
func WrapSQLRows(r *sql.Rows) Rows {
	return r
}
