package config // package config loads application configuration from environment variables

import (
    "fmt"     // fmt builds descriptive configuration errors
    "os"      // os provides access to environment variables
    "time"    // time parses durations and time zones

    "github.com/joho/godotenv" // godotenv loads an optional .env file before reading the environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database and secrets are required; everything
// that tunes ingestion, access control and the live gateway has a default
// matching the behaviour of a stock installation.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    LogLevel       string // zerolog level name
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to verify (and issue) principal JWTs
    AccessTTLMin   int    // access token time-to-live in minutes

    ImportToken    string         // pre-shared token expected on POST /import_transmission
    AccessRestrict bool           // when false every talkgroup is visible to everyone
    AnonymousTime  int            // history window in minutes for principals without a plan (0 = unlimited)
    FixAudioName   bool           // replace "+" in audio filenames with "%2B"
    AudioURLBase   string         // prefix used to build audio URLs in API output
    Location       *time.Location // time zone used to interpret recorder timestamps
    RecentLength   int            // minutes covered by talkgroups.recent_usage

    FanoutTimeout time.Duration // upper bound for one post-commit fan-out publish
    LiveWriteWait time.Duration // upper bound for one websocket write
    LiveBuffer    int           // per-connection outbound queue length
    LivePrefix    string        // redis pub/sub topic used to bridge processes
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is applied first when
// present.  Missing required values are reported as an error rather than
// exiting so that commands can decide how to fail.
func Load() (Config, error) {
    _ = godotenv.Load() // optional; real environment variables win

    cfg := Config{
        Env:            envStr("APP_ENV", "dev"),
        Port:           envStr("APP_PORT", "8080"),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        DBUser:         os.Getenv("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         envStr("DB_HOST", "127.0.0.1"),
        DBPort:         envStr("DB_PORT", "3306"),
        DBName:         os.Getenv("DB_NAME"),
        JWTSecret:      os.Getenv("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
        ImportToken:    os.Getenv("ADD_TRANS_AUTH_TOKEN"),
        AccessRestrict: envBool("ACCESS_TG_RESTRICT", false),
        AnonymousTime:  envInt("ANONYMOUS_TIME", 43200),
        FixAudioName:   envBool("FIX_AUDIO_NAME", false),
        AudioURLBase:   envStr("AUDIO_URL_BASE", "/media/"),
        RecentLength:   envInt("TALKGROUP_RECENT_LENGTH", 15),
        FanoutTimeout:  envDur("FANOUT_TIMEOUT", 2*time.Second),
        LiveWriteWait:  envDur("LIVE_WRITE_WAIT", 10*time.Second),
        LiveBuffer:     envInt("LIVE_SEND_BUFFER", 64),
        LivePrefix:     envStr("LIVE_PREFIX", "trunkplayer:live"),
    }

    loc, err := time.LoadLocation(envStr("TZ", "UTC"))
    if err != nil {
        return Config{}, fmt.Errorf("invalid TZ: %w", err)
    }
    cfg.Location = loc

    if err := cfg.Validate(); err != nil {
        return Config{}, err
    }
    return cfg, nil
}

// Validate checks that the values without sensible defaults are present.
func (c Config) Validate() error {
    if c.DBName == "" {
        return fmt.Errorf("missing required env var: DB_NAME")
    }
    if c.DBUser == "" {
        return fmt.Errorf("missing required env var: DB_USER")
    }
    if c.JWTSecret == "" {
        return fmt.Errorf("missing required env var: JWT_SECRET")
    }
    if c.ImportToken == "" {
        return fmt.Errorf("missing required env var: ADD_TRANS_AUTH_TOKEN")
    }
    if c.LiveBuffer < 1 {
        return fmt.Errorf("LIVE_SEND_BUFFER must be positive")
    }
    return nil
}

// RecentWindow returns the recent-usage window as a duration.
func (c Config) RecentWindow() time.Duration {
    return time.Duration(c.RecentLength) * time.Minute
}
