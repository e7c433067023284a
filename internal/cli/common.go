package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/threadpost/internal/config"
	"github.com/roach88/threadpost/internal/logging"
)

// loadConfig loads configuration and applies a --db override, which always
// selects the SQLite store at that path.
func loadConfig(opts *RootOptions, dbPath string) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// newLogger builds the run logger on w. --verbose forces debug level.
func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) *logrus.Logger {
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Format: cfg.Log.Format, Output: w})
}

// parseNow returns the --now override, or the current time.
func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --now %q: expected RFC3339", value))
	}
	return t.UTC(), nil
}
