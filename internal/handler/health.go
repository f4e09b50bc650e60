package handler // declare the package name; contains HTTP handlers

import (
    "context"      // context bounds the database ping
    "database/sql" // sql provides the pool being checked
    "net/http"     // net/http provides status codes and response helpers
    "time"         // time sets the ping timeout

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health returns a health-check endpoint used by load balancers and
// monitoring systems.  It answers "ok" with 200 when the database answers a
// ping within two seconds and "unavailable" with 503 otherwise, so a
// recorder pointed at a server with a dead database fails fast.
func Health(db *sql.DB) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "unavailable")
        }
        return c.String(http.StatusOK, "ok")
    }
}
