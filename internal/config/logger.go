package config

import (
    "os"
    "time"

    "github.com/rs/zerolog"
)

// NewLogger builds the application logger.  In the dev environment log
// lines are pretty-printed to the console; everywhere else they are
// emitted as JSON for log shipping.
func NewLogger(env, level string) zerolog.Logger {
    lvl, err := zerolog.ParseLevel(level)
    if err != nil {
        lvl = zerolog.InfoLevel
    }
    zerolog.SetGlobalLevel(lvl)

    if env == "dev" {
        return zerolog.New(zerolog.ConsoleWriter{
            Out:        os.Stdout,
            TimeFormat: time.RFC3339,
        }).With().Timestamp().Logger()
    }
    return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
