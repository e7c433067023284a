// Package config loads threadpost configuration from defaults, an optional
// YAML file, .env files and the process environment, and checks it against
// an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Transport kinds.
const (
	TransportX      = "x"
	TransportDryRun = "dryrun"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete runtime configuration.
type Config struct {
	Platform  string          `yaml:"platform" json:"platform"`
	MaxLength int             `yaml:"max_length" json:"max_length"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	X         XConfig         `yaml:"x" json:"x"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// TransportConfig selects the publish transport.
type TransportConfig struct {
	Kind           string `yaml:"kind" json:"kind"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout is the per-call publish timeout.
func (t TransportConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// DatabaseConfig selects the item repository.
type DatabaseConfig struct {
	Driver    string `yaml:"driver" json:"driver"`
	Path      string `yaml:"path" json:"path"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`

	// URL is the Postgres connection string. It is kept out of the schema
	// check so a malformed value never echoes credentials.
	URL string `yaml:"url" json:"-"`
}

// XConfig configures the X API transport. Credentials come only from the
// environment.
type XConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url"`
	TokenURL string `yaml:"token_url" json:"token_url"`
	Handle   string `yaml:"handle" json:"handle"`

	AccessToken  string `yaml:"-" json:"-"`
	RefreshToken string `yaml:"-" json:"-"`
	ClientID     string `yaml:"-" json:"-"`
	ClientSecret string `yaml:"-" json:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig configures the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url"`
	Job            string `yaml:"job" json:"job"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Platform:  "twitter",
		MaxLength: 280,
		Transport: TransportConfig{Kind: TransportX, TimeoutSeconds: 30},
		Database:  DatabaseConfig{Driver: DriverSQLite, Path: "threadpost.db"},
		Log:       LogConfig{Level: "info", Format: "json"},
		Metrics:   MetricsConfig{Job: "threadpost"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then .env files, then the process environment. The
// result is checked against the schema. Credentials are not required here;
// call Validate before publishing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if _, err := LoadEnvFiles(".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.CheckSchema(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnvFiles loads the given .env files that exist. Variables already set
// in the process environment win. It returns the files that were loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("THREADPOST_PLATFORM", &c.Platform)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("X_HANDLE", &c.X.Handle)
	str("X_API_BASE_URL", &c.X.BaseURL)
	str("X_ACCESS_TOKEN", &c.X.AccessToken)
	str("X_REFRESH_TOKEN", &c.X.RefreshToken)
	str("X_CLIENT_ID", &c.X.ClientID)
	str("X_CLIENT_SECRET", &c.X.ClientSecret)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("PUSHGATEWAY_URL", &c.Metrics.PushgatewayURL)

	if v, ok := lookup("THREADPOST_BATCH_SIZE"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Database.BatchSize = n
		}
	}
}

// CheckSchema validates shape, enums and ranges against the embedded schema.
func (c *Config) CheckSchema() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		cerr := &ConfigError{}
		for _, e := range cueerrors.Errors(err) {
			cerr.Invalid = append(cerr.Invalid, e.Error())
		}
		if len(cerr.Invalid) == 0 {
			cerr.Invalid = []string{err.Error()}
		}
		return cerr
	}
	return nil
}

// Validate checks that everything needed to publish is present.
func (c *Config) Validate() error {
	cerr := &ConfigError{}

	switch c.Transport.Kind {
	case TransportX:
		if c.X.AccessToken == "" && c.X.RefreshToken == "" {
			cerr.Missing = append(cerr.Missing, "X_ACCESS_TOKEN or X_REFRESH_TOKEN")
		}
		if c.X.RefreshToken != "" && c.X.ClientID == "" {
			cerr.Missing = append(cerr.Missing, "X_CLIENT_ID")
		}
	case TransportDryRun:
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("transport.kind %q", c.Transport.Kind))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			cerr.Missing = append(cerr.Missing, "database.path")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			cerr.Missing = append(cerr.Missing, "DATABASE_URL")
		}
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("database.driver %q", c.Database.Driver))
	}

	if c.Platform == "" {
		cerr.Missing = append(cerr.Missing, "platform")
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return cerr
	}
	return nil
}
