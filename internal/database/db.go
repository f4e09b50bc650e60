package database

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    _ "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/trunk-player/internal/config"
)

// DSN builds the MySQL data source name for cfg.
func DSN(cfg config.Config) string {
    auth := cfg.DBUser
    if cfg.DBPass != "" {
        auth = fmt.Sprintf("%s:%s", cfg.DBUser, cfg.DBPass)
    }
    // parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
    return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
        auth, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// Open connects to MySQL and verifies the connection.  Every recorder
// import holds one connection for the duration of its transaction, so the
// pool is sized for a handful of concurrent recorders plus API readers.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
    db, err := sql.Open("mysql", DSN(cfg))
    if err != nil {
        return nil, err
    }

    // Pool settings
    db.SetMaxOpenConns(25)
    db.SetMaxIdleConns(25)
    db.SetConnMaxLifetime(30 * time.Minute)

    // Ping with timeout
    pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := db.PingContext(pingCtx); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping mysql %s:%s: %w", cfg.DBHost, cfg.DBPort, err)
    }
    return db, nil
}
