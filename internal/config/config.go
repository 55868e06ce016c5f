package config // package config loads application configuration from environment variables

import (
    "log"  // log is used to report configuration errors and halt execution
    "os"   // os provides access to environment variables
    "time" // time parses duration values
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The types reflect how the values are used
// in the application: strings for identifiers and secrets, durations for
// the reservation engine's timing knobs.
type Config struct {
    Env           string        // application environment (e.g. "dev", "prod")
    Port          string        // HTTP port to listen on
    DBUser        string        // database username
    DBPass        string        // database password (optional)
    DBHost        string        // database host address
    DBPort        string        // database port number
    DBName        string        // database name
    JWTSecret     string        // secret used to verify caller identity tokens
    HoldTTL       time.Duration // seat reservation window (default 6m)
    SweepInterval time.Duration // expiry sweep period (default 15s)
    SeatMapTTL    time.Duration // seat availability snapshot cache TTL (default 5s)
    LogLevel      string        // zerolog level (default "info")
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The engine timing
// knobs have sensible defaults so a minimal environment still runs.
func Load() Config {
    return Config{
        Env:           must("APP_ENV"),      // environment (dev/test/prod)
        Port:          must("APP_PORT"),     // port to bind the HTTP server
        DBUser:        must("DB_USER"),      // database user
        DBPass:        os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:        must("DB_HOST"),      // database host
        DBPort:        must("DB_PORT"),      // database port
        DBName:        must("DB_NAME"),      // database name
        JWTSecret:     must("JWT_SECRET"),   // secret for identity token verification
        HoldTTL:       envDur("HOLD_TTL", 6*time.Minute),
        SweepInterval: envDur("SWEEP_INTERVAL", 15*time.Second),
        SeatMapTTL:    envDur("SEATMAP_CACHE_TTL", 5*time.Second),
        LogLevel:      envStr("LOG_LEVEL", "info"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        log.Fatalf("invalid duration for %s: %q", key, v)
    }
    return d
}
