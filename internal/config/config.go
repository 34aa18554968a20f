// Package config provides configuration management for memkeep.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine selects the relational engine backing the store.
type Engine string

const (
	EngineSQLite   Engine = "sqlite"
	EngineMySQL    Engine = "mysql"
	EnginePostgres Engine = "postgres"
)

// Default pool sizing for the client/server engines.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
)

// Config holds construction-time settings for the memory store.
//
// The solo-laptop profile is the sqlite engine with a file under the data
// directory; the shared-team profile points Engine at mysql or postgres with
// the connection fields filled in. Switching profiles changes nothing else.
type Config struct {
	Engine   Engine `yaml:"engine"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// Path is the database file for the sqlite engine.
	Path string `yaml:"path"`

	// Pool sizing for the mysql and postgres engines. The sqlite engine
	// ignores these: its writes serialize on the file lock, so it always
	// uses a fixed small pool.
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Default returns the solo-laptop profile: embedded sqlite under DataDir.
func Default() Config {
	return Config{
		Engine:          EngineSQLite,
		Path:            DBPath(),
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
	}
}

// DataDir returns the memkeep data directory (~/.memkeep).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".memkeep")
}

// DBPath returns the default sqlite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "memkeep.db")
}

// SettingsPath returns the default settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Load reads settings from the YAML file at path (missing file is fine) and
// applies MEMKEEP_* environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No settings file, defaults + env only.
	case err != nil:
		return cfg, fmt.Errorf("read settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse settings: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that the selected engine has the fields it needs.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineSQLite:
		if c.Path == "" {
			return fmt.Errorf("config: sqlite engine requires a database path")
		}
	case EngineMySQL, EnginePostgres:
		if c.Host == "" || c.Database == "" {
			return fmt.Errorf("config: %s engine requires host and database", c.Engine)
		}
	default:
		return fmt.Errorf("config: unknown engine %q", c.Engine)
	}
	return nil
}

// applyEnv overrides cfg fields from MEMKEEP_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MEMKEEP_ENGINE"); v != "" {
		cfg.Engine = Engine(v)
	}
	if v := os.Getenv("MEMKEEP_DB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("MEMKEEP_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("MEMKEEP_DB_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("MEMKEEP_DB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("MEMKEEP_DB_NAME"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("MEMKEEP_DB_PATH"); v != "" {
		cfg.Path = v
	}
}
