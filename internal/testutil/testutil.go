// Package testutil builds throwaway SQLite databases carrying the full
// schema, so repository, service and handler tests run the same SQL the
// server runs against MySQL.
package testutil

import (
    "context"
    "database/sql"
    "path/filepath"
    "testing"

    _ "github.com/mattn/go-sqlite3"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/trunk-player/internal/database"
)

// NewDB creates a migrated SQLite database in t.TempDir().  The pool is
// limited to one connection: SQLite serializes writers anyway and a single
// connection keeps concurrent tests free of SQLITE_BUSY errors.  The
// database is closed with t.Cleanup.
func NewDB(t *testing.T) *sql.DB {
    t.Helper()

    path := filepath.Join(t.TempDir(), "trunkplayer.db")
    db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
    require.NoError(t, err, "open sqlite")
    db.SetMaxOpenConns(1)
    t.Cleanup(func() { _ = db.Close() })

    require.NoError(t, database.Migrate(context.Background(), db, database.SQLite), "migrate sqlite")
    return db
}

// Exec runs a raw statement, failing the test on error.  Tests use it to
// seed rows the repositories do not create directly.
func Exec(t *testing.T, db *sql.DB, query string, args ...any) sql.Result {
    t.Helper()
    res, err := db.ExecContext(context.Background(), query, args...)
    require.NoError(t, err, query)
    return res
}

// Count returns SELECT COUNT(*) for the given table and optional WHERE
// clause.
func Count(t *testing.T, db *sql.DB, table, where string, args ...any) int {
    t.Helper()
    q := "SELECT COUNT(*) FROM " + table
    if where != "" {
        q += " WHERE " + where
    }
    var n int
    require.NoError(t, db.QueryRowContext(context.Background(), q, args...).Scan(&n), q)
    return n
}
