// Package config loads engine settings from YAML, TOML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/spektr-olap/evaluator"
)

// EnvPath names the environment variable LoadFromEnv reads.
const EnvPath = "SPEKTR_OLAP_CONFIG"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the engine settings.
type Config struct {
	IgnoreInvalidMembers bool          `yaml:"ignoreInvalidMembers" toml:"ignoreInvalidMembers" json:"ignoreInvalidMembers"`
	CacheSize            int           `yaml:"cacheSize" toml:"cacheSize" json:"cacheSize"`
	LogLevel             string        `yaml:"logLevel" toml:"logLevel" json:"logLevel"`
	Store                StoreConfig   `yaml:"store" toml:"store" json:"store"`
	Metrics              MetricsConfig `yaml:"metrics" toml:"metrics" json:"metrics"`
}

// StoreConfig selects where scenarios are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver" json:"driver"`
	Path   string `yaml:"path" toml:"path" json:"path"`
	DSN    string `yaml:"dsn" toml:"dsn" json:"dsn"`
}

// MetricsConfig toggles the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		CacheSize: evaluator.DefaultCacheSize,
		LogLevel:  "info",
		Store:     StoreConfig{Driver: DriverMemory},
	}
}

// Load reads path, choosing the format by extension (.yaml/.yml, .toml,
// .json). Missing keys keep their defaults.
func Load(path string) (Config, error) {
	path = os.ExpandEnv(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.expandEnvVars()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by SPEKTR_OLAP_CONFIG, or returns the
// defaults when it is unset.
func LoadFromEnv() (Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) expandEnvVars() {
	c.Store.DSN = os.ExpandEnv(c.Store.DSN)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
}

// Validate checks value ranges and the store driver.
func (c Config) Validate() error {
	if c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive, got %d", c.CacheSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	switch c.Store.Driver {
	case DriverMemory, DriverPostgres:
	case DriverBadger, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store driver %s needs a path", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Logger returns a logrus logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	return l
}
