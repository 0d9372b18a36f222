package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/pipekit/pkg/retry"
)

// Backend selects the state repository implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
)

// Valid checks if the backend is one of the known constants.
func (b Backend) Valid() bool {
	return b == BackendMemory || b == BackendPostgres
}

// Config is the normalized configuration the execution core consumes. By the
// time a Config exists, the shape it came from is forgotten.
type Config struct {
	DefaultRetry   retry.Policy
	StageTimeout   time.Duration
	StorageBackend Backend
}

// Validate reports whether the normalized configuration is usable.
func (c Config) Validate() error {
	if err := c.DefaultRetry.Validate(); err != nil {
		return err
	}
	if !c.StorageBackend.Valid() {
		return fmt.Errorf("%w: got %q", ErrInvalidBackend, c.StorageBackend)
	}
	return nil
}

// Default returns the built-in configuration used when no source sets a value.
func Default() Config {
	return Config{
		DefaultRetry:   retry.ExponentialBackoff(3, time.Second, 30*time.Second),
		StageTimeout:   10 * time.Minute,
		StorageBackend: BackendMemory,
	}
}

// fileConfig accepts both recognized file shapes at once. Durations are
// strings because YAML has no native duration scalar.
type fileConfig struct {
	Pipeline *struct {
		Retry *struct {
			MaxAttempts  *int    `yaml:"max_attempts"`
			Strategy     *string `yaml:"strategy"`
			InitialDelay *string `yaml:"initial_delay"`
			MaxDelay     *string `yaml:"max_delay"`
		} `yaml:"retry"`
		StageTimeout *string `yaml:"stage_timeout"`
	} `yaml:"pipeline"`
	Storage *struct {
		Backend *string `yaml:"backend"`
	} `yaml:"storage"`

	// Legacy flat shape, mapped one-to-one onto the nested fields above.
	RetryMaxAttempts  *int    `yaml:"retry_max_attempts"`
	RetryStrategy     *string `yaml:"retry_strategy"`
	RetryInitialDelay *string `yaml:"retry_initial_delay"`
	RetryMaxDelay     *string `yaml:"retry_max_delay"`
	StageTimeout      *string `yaml:"stage_timeout"`
	StorageBackend    *string `yaml:"storage_backend"`
}

// LoadFile reads a YAML config file in either shape and normalizes it.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Join(ErrFailedToReadFile, err)
	}
	return Parse(data)
}

// Parse normalizes raw YAML in either shape into a Config.
func Parse(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, errors.Join(ErrFailedToParseFile, err)
	}

	cfg := Default()

	// Legacy flat keys first, then nested keys, so nested wins on conflict.
	if err := applyFlat(&cfg, fc); err != nil {
		return Config{}, err
	}
	if err := applyNested(&cfg, fc); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFlat(cfg *Config, fc fileConfig) error {
	if fc.RetryMaxAttempts != nil {
		cfg.DefaultRetry.MaxAttempts = *fc.RetryMaxAttempts
	}
	if fc.RetryStrategy != nil {
		cfg.DefaultRetry.Strategy = retry.Strategy(*fc.RetryStrategy)
	}
	if err := setDuration(&cfg.DefaultRetry.InitialDelay, fc.RetryInitialDelay); err != nil {
		return err
	}
	if err := setDuration(&cfg.DefaultRetry.MaxDelay, fc.RetryMaxDelay); err != nil {
		return err
	}
	if err := setDuration(&cfg.StageTimeout, fc.StageTimeout); err != nil {
		return err
	}
	if fc.StorageBackend != nil {
		cfg.StorageBackend = Backend(*fc.StorageBackend)
	}
	return nil
}

func applyNested(cfg *Config, fc fileConfig) error {
	if fc.Pipeline != nil {
		if r := fc.Pipeline.Retry; r != nil {
			if r.MaxAttempts != nil {
				cfg.DefaultRetry.MaxAttempts = *r.MaxAttempts
			}
			if r.Strategy != nil {
				cfg.DefaultRetry.Strategy = retry.Strategy(*r.Strategy)
			}
			if err := setDuration(&cfg.DefaultRetry.InitialDelay, r.InitialDelay); err != nil {
				return err
			}
			if err := setDuration(&cfg.DefaultRetry.MaxDelay, r.MaxDelay); err != nil {
				return err
			}
		}
		if err := setDuration(&cfg.StageTimeout, fc.Pipeline.StageTimeout); err != nil {
			return err
		}
	}
	if fc.Storage != nil && fc.Storage.Backend != nil {
		cfg.StorageBackend = Backend(*fc.Storage.Backend)
	}
	return nil
}

func setDuration(dst *time.Duration, raw *string) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, *raw)
	}
	*dst = d
	return nil
}

// envConfig maps the same settings onto environment variables.
type envConfig struct {
	RetryMaxAttempts  int           `env:"PIPELINE_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryStrategy     string        `env:"PIPELINE_RETRY_STRATEGY" envDefault:"exponential_backoff"`
	RetryInitialDelay time.Duration `env:"PIPELINE_RETRY_INITIAL_DELAY" envDefault:"1s"`
	RetryMaxDelay     time.Duration `env:"PIPELINE_RETRY_MAX_DELAY" envDefault:"30s"`
	StageTimeout      time.Duration `env:"PIPELINE_STAGE_TIMEOUT" envDefault:"10m"`
	StorageBackend    string        `env:"PIPELINE_STORAGE_BACKEND" envDefault:"memory"`
}

var defaultEnvLoaded sync.Once

// Load builds a Config from environment variables, loading a .env file once
// if one is present.
func Load() (Config, error) {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, errors.Join(ErrParsingEnv, err)
	}

	cfg := Config{
		DefaultRetry: retry.Policy{
			MaxAttempts:  ec.RetryMaxAttempts,
			Strategy:     retry.Strategy(ec.RetryStrategy),
			InitialDelay: ec.RetryInitialDelay,
			MaxDelay:     ec.RetryMaxDelay,
		},
		StageTimeout:   ec.StageTimeout,
		StorageBackend: Backend(ec.StorageBackend),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
