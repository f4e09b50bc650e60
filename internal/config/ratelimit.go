package config

import "time"

// RateLimitConfig configures the fixed-window limiter applied to the public
// read API.  The import endpoint is never limited: dropping recorder posts
// would lose transmissions.
type RateLimitConfig struct {
    Enabled bool
    Limit   int           // requests allowed per window and key
    Window  time.Duration // window length
    Prefix  string
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables and clamps nonsense values.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Limit:   envInt("RATE_LIMIT_LIMIT", 120),
        Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
        Prefix:  envStr("RATE_LIMIT_PREFIX", "tprl"),
    }
    if cfg.Limit < 1 {
        cfg.Limit = 1
    }
    if cfg.Window < time.Second {
        cfg.Window = time.Second
    }
    return cfg
}
