// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/docweave/weave/pkg/storage/sqlstore"
)

var dialect = sqlstore.Dialect{
	Name: "sqlite3",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			kind          TEXT NOT NULL,
			index_name    TEXT NOT NULL DEFAULT '',
			state         TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			error         TEXT NOT NULL DEFAULT '',
			started_at    TIMESTAMP NOT NULL,
			finished_at   TIMESTAMP NULL,
			records       INTEGER NOT NULL DEFAULT 0,
			decode_errors INTEGER NOT NULL DEFAULT 0,
			payload       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_kind_started_at ON sessions (kind, started_at)`,
	},
}

// SQLiteDriver implements storage.Driver using SQLite.
type SQLiteDriver struct {
	*sqlstore.Store
}

// busyTimeoutMs is how long a connection waits on a locked database.
const busyTimeoutMs = 5000

// DSN returns the data source name for dbPath. Connection settings travel in
// the DSN so that every connection of the pool gets them.
func DSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", dbPath, sep, busyTimeoutMs)
}

// NewSQLiteDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDriver(dbPath string) (*SQLiteDriver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store, err := sqlstore.New(context.Background(), db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDriver{Store: store}, nil
}
