// Package config loads service settings from the environment, an optional
// .env file and TOML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings shared by the server and the CLI.
type Config struct {
	HTTPAddr         string `env:"LEDGER_HTTP_ADDR" envDefault:":8080" toml:"http_addr"`
	MetricsNamespace string `env:"LEDGER_METRICS_NAMESPACE" envDefault:"equity_ledger" toml:"metrics_namespace"`

	PostgresDSN   string `env:"LEDGER_POSTGRES_DSN" toml:"postgres_dsn"`
	ClickhouseDSN string `env:"LEDGER_CLICKHOUSE_DSN" toml:"clickhouse_dsn"`
	UseMemory     bool   `env:"LEDGER_USE_MEMORY" envDefault:"false" toml:"use_memory"`

	LogLevel  string `env:"LEDGER_LOG_LEVEL" envDefault:"info" toml:"log_level"`
	LogFormat string `env:"LEDGER_LOG_FORMAT" envDefault:"json" toml:"log_format"` // "json" or "text"

	// StrictDates rejects unparseable dates instead of storing them as absent.
	StrictDates bool `env:"LEDGER_STRICT_DATES" envDefault:"false" toml:"strict_dates"`
	// EnforcePoolCapacity rejects grants that over-allocate the pool.
	EnforcePoolCapacity bool `env:"LEDGER_ENFORCE_POOL_CAPACITY" envDefault:"false" toml:"enforce_pool_capacity"`

	CacheTTL       time.Duration `env:"LEDGER_CACHE_TTL" envDefault:"5m" toml:"cache_ttl"`
	DefaultCompany string        `env:"LEDGER_DEFAULT_COMPANY" toml:"default_company"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPAddr:         ":8080",
		MetricsNamespace: "equity_ledger",
		LogLevel:         "info",
		LogFormat:        "json",
		CacheTTL:         5 * time.Minute,
	}
}

// LoadEnvFile loads variables from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv parses the configuration from environment variables.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Load reads envFile (if present) and then the environment.
func Load(envFile string) (*Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return FromEnv()
}

// Read decodes a Config from r on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that a storage backend is configured.
func (c *Config) Validate() error {
	if !c.UseMemory && c.PostgresDSN == "" {
		return errors.New("postgres DSN is required (set LEDGER_POSTGRES_DSN or use in-memory storage)")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}
