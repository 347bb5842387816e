package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDriver(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected Driver
	}{
		{"empty URL defaults to SQLite", "", DriverSQLite},
		{"postgres scheme", "postgres://chess:pw@localhost:5432/chessgate", DriverPostgres},
		{"postgresql scheme", "postgresql://localhost/chessgate", DriverPostgres},
		{"sqlite scheme", "sqlite:///var/lib/chessgate/journal.db", DriverSQLite},
		{"file scheme", "file:journal.sqlite", DriverSQLite},
		{"in memory", ":memory:", DriverSQLite},
		{".db extension", "/tmp/journal.db", DriverSQLite},
		{".sqlite3 extension", "journal.sqlite3", DriverSQLite},
		{"unknown defaults to PostgreSQL", "chess-db.internal:5432", DriverPostgres},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectDriver(tt.url))
		})
	}
}

func TestDriver_IsValid(t *testing.T) {
	assert.True(t, DriverPostgres.IsValid())
	assert.True(t, DriverSQLite.IsValid())
	assert.False(t, Driver("mysql").IsValid())
}

func TestDriver_Rebind(t *testing.T) {
	q := "INSERT INTO moves (a, b) VALUES (?, ?)"
	assert.Equal(t, q, DriverSQLite.Rebind(q))
	assert.Equal(t, "INSERT INTO moves (a, b) VALUES ($1, $2)", DriverPostgres.Rebind(q))
}

func TestSQLitePathFromURL(t *testing.T) {
	assert.Equal(t, "/var/lib/journal.db", SQLitePathFromURL("sqlite:///var/lib/journal.db"))
	assert.Equal(t, "journal.db", SQLitePathFromURL("file:journal.db"))
	assert.Equal(t, "journal.db", SQLitePathFromURL("journal.db"))
}
