// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the ingestion service to distinguish between different
// failure scenarios without inspecting driver errors themselves.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write collides with an existing row on a
// natural key that the caller chose (scanlist or incident names, for
// example). Handlers should translate this into an HTTP 409 response.
// Get-or-create paths never surface it: they retry the read instead.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique-constraint violation.  MySQL
// reports error 1062; SQLite (used by the test suite) reports
// "UNIQUE constraint failed".  The SQLite check is textual so production
// builds do not link the cgo driver.
func isDuplicate(err error) bool {
    if err == nil {
        return false
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == mysqlDuplicateEntry
    }
    msg := err.Error()
    return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Error 1062")
}

// queryer is satisfied by both *sql.DB and *sql.Tx so lookups can run
// inside or outside a caller's transaction.
type queryer interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

// now returns the current UTC time at the precision MySQL DATETIME(6)
// keeps, so values read back compare equal to values written.
func now() time.Time {
    return time.Now().UTC().Truncate(time.Microsecond)
}

// nullTime converts a nullable column into a pointer.
func nullTime(nt sql.NullTime) *time.Time {
    if !nt.Valid {
        return nil
    }
    t := nt.Time.UTC()
    return &t
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
    if n <= 0 {
        return ""
    }
    return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// uint64Args converts ids to query arguments.
func uint64Args(ids []uint64) []any {
    out := make([]any, len(ids))
    for i, id := range ids {
        out[i] = id
    }
    return out
}

// rollback is deferred by transactional helpers; after a successful Commit
// it is a no-op returning sql.ErrTxDone.
func rollback(tx *sql.Tx) { _ = tx.Rollback() }
