package middleware

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/trunk-player/internal/config"
)

// rateKey identifies the caller: the user for authenticated principals,
// the client IP otherwise.  The window index is appended so each window
// gets a fresh counter.
func rateKey(cfg config.RateLimitConfig, c echo.Context, window int64) string {
    who := "ip:" + c.RealIP()
    if p := PrincipalFrom(c); p.Authenticated {
        who = "u:" + strconv.FormatUint(p.UserID, 10)
    }
    return cfg.Prefix + ":" + who + ":" + strconv.FormatInt(window, 10)
}

// NewRateLimiter applies a fixed-window limit per caller using INCR and
// EXPIRE.  Redis errors let the request through: the limiter protects the
// API, it must not take it down.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            now := time.Now()
            window := now.UnixNano() / int64(cfg.Window)
            key := rateKey(cfg, c, window)

            ctx := c.Request().Context()
            pipe := rdb.TxPipeline()
            incr := pipe.Incr(ctx, key)
            pipe.Expire(ctx, key, cfg.Window)
            if _, err := pipe.Exec(ctx); err != nil {
                c.Logger().Warnf("ratelimit: redis error for key=%s: %v", key, err)
                return next(c)
            }

            count := incr.Val()
            remaining := int64(cfg.Limit) - count
            if remaining < 0 {
                remaining = 0
            }
            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

            if count > int64(cfg.Limit) {
                reset := time.Unix(0, (window+1)*int64(cfg.Window))
                secs := int(reset.Sub(now).Seconds() + 0.999)
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}
