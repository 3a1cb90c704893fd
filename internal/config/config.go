// Package config loads fieldsync settings from FIELDSYNC_* environment
// variables. Command-line flags override individual fields after Load.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
)

// Config is the runtime configuration.
type Config struct {
	DataDir          string        `env:"DATA_DIR"          envDefault:"./data"`
	BackendURL       string        `env:"BACKEND_URL"       envDefault:"http://localhost:8090"`
	ListenAddr       string        `env:"LISTEN_ADDR"       envDefault:":8080"`
	ProbeInterval    time.Duration `env:"PROBE_INTERVAL"    envDefault:"10s"`
	RetryInterval    time.Duration `env:"RETRY_INTERVAL"    envDefault:"30s"`
	SaveDebounce     time.Duration `env:"SAVE_DEBOUNCE"     envDefault:"250ms"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT"      envDefault:"15s"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"4"`
	MaxRetries       int           `env:"MAX_RETRIES"       envDefault:"5"`
	LogLevel         string        `env:"LOG_LEVEL"         envDefault:"info"`
	LogFile          string        `env:"LOG_FILE"`
	LogMaxSizeMB     int           `env:"LOG_MAX_SIZE_MB"   envDefault:"10"`
	LogMaxBackups    int           `env:"LOG_MAX_BACKUPS"   envDefault:"3"`

	// StateKey encrypts the local database record when set.
	StateKey string `env:"STATE_KEY"`
}

// Prefix is prepended to every variable name.
const Prefix = "FIELDSYNC_"

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrInvalid, "parse env", err)
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return invalid("data dir is required")
	}
	for name, d := range map[string]time.Duration{
		"probe interval": c.ProbeInterval,
		"retry interval": c.RetryInterval,
		"http timeout":   c.HTTPTimeout,
	} {
		if d <= 0 {
			return invalid(fmt.Sprintf("%s must be positive, got %s", name, d))
		}
	}
	if c.SaveDebounce < 0 {
		return invalid("save debounce must not be negative")
	}
	if c.FetchConcurrency <= 0 {
		return invalid("fetch concurrency must be positive")
	}
	if c.MaxRetries <= 0 {
		return invalid("max retries must be positive")
	}
	return nil
}

func invalid(msg string) error {
	return apperrors.New(apperrors.ErrInvalid, msg)
}
