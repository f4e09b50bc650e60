// Package logger builds the zerolog logger shared by every component.
package logger

import (
    "io"
    "os"
    "strings"

    "github.com/rs/zerolog"
)

// New creates a console logger with timestamps and caller information at the
// given level.  Unknown level names fall back to info.
func New(level string) zerolog.Logger {
    return NewWithWriter(level, zerolog.ConsoleWriter{Out: os.Stdout})
}

// NewWithWriter is New with an explicit destination; production uses the
// console writer while JSON output is handy for log shippers and tests.
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
    return zerolog.New(w).
        Level(parseLevel(level)).
        With().
        Timestamp().
        Caller().
        Logger()
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
    return l.With().Str("component", name).Logger()
}

func parseLevel(level string) zerolog.Level {
    switch strings.ToLower(strings.TrimSpace(level)) {
    case "trace":
        return zerolog.TraceLevel
    case "debug":
        return zerolog.DebugLevel
    case "warn", "warning":
        return zerolog.WarnLevel
    case "error":
        return zerolog.ErrorLevel
    case "fatal":
        return zerolog.FatalLevel
    case "disabled", "off":
        return zerolog.Disabled
    default:
        return zerolog.InfoLevel
    }
}
