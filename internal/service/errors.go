// Package service holds the write path (transmission ingestion), the
// access resolver shared by queries and live delivery, and the fan-out
// router that turns a stored transmission into a live event.
package service

import (
    "errors"
    "fmt"
    "sort"
    "strings"
)

// ErrUnauthorized is returned when the import credential does not match.
// It is never merged into validation errors.
var ErrUnauthorized = errors.New("invalid import token")

// ValidationError carries per-field messages for a rejected import
// payload.  Nothing has been written when it is returned.
type ValidationError struct {
    Fields map[string][]string
}

func (e *ValidationError) Error() string {
    keys := make([]string, 0, len(e.Fields))
    for k := range e.Fields {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    parts := make([]string, 0, len(keys))
    for _, k := range keys {
        parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
    }
    return "invalid transmission: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, msg string) {
    if e.Fields == nil {
        e.Fields = map[string][]string{}
    }
    e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

// PersistenceError wraps an unexpected storage failure during import.  The
// import transaction has been rolled back.
type PersistenceError struct {
    Op  string
    Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }
