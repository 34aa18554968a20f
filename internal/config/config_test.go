// Package config provides configuration management for memkeep.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()

	// Save and override HOME so DataDir points into the sandbox.
	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)

	for _, key := range []string{
		"MEMKEEP_ENGINE", "MEMKEEP_DB_HOST", "MEMKEEP_DB_PORT",
		"MEMKEEP_DB_USER", "MEMKEEP_DB_PASSWORD", "MEMKEEP_DB_NAME",
		"MEMKEEP_DB_PATH",
	} {
		os.Unsetenv(key)
	}
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(EngineSQLite, cfg.Engine)
	s.Contains(cfg.Path, "memkeep.db")
	s.Equal(DefaultMaxOpenConns, cfg.MaxOpenConns)
	s.Equal(DefaultMaxIdleConns, cfg.MaxIdleConns)
	s.Equal(DefaultConnMaxLifetime, cfg.ConnMaxLifetime)
}

// TestDataDir tests data directory path.
func (s *ConfigSuite) TestDataDir() {
	s.Contains(DataDir(), ".memkeep")
}

// TestEnsureDataDir tests data directory creation.
func (s *ConfigSuite) TestEnsureDataDir() {
	s.NoError(EnsureDataDir())
	info, err := os.Stat(DataDir())
	s.NoError(err)
	s.True(info.IsDir())
}

// TestLoadMissingFile tests that a missing settings file yields defaults.
func (s *ConfigSuite) TestLoadMissingFile() {
	cfg, err := Load(filepath.Join(s.tempDir, "nope.yaml"))
	s.NoError(err)
	s.Equal(EngineSQLite, cfg.Engine)
}

// TestLoadYAML tests settings file parsing.
func (s *ConfigSuite) TestLoadYAML() {
	path := filepath.Join(s.tempDir, "settings.yaml")
	data := []byte(`engine: mysql
host: db.internal
port: 3306
user: do
password: hunter2
database: memkeep
conn_max_lifetime: 2m
`)
	s.Require().NoError(os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(EngineMySQL, cfg.Engine)
	s.Equal("db.internal", cfg.Host)
	s.Equal(3306, cfg.Port)
	s.Equal("do", cfg.User)
	s.Equal("memkeep", cfg.Database)
	s.Equal(2*time.Minute, cfg.ConnMaxLifetime)
}

// TestEnvOverrides tests that environment variables win over file values.
func (s *ConfigSuite) TestEnvOverrides() {
	path := filepath.Join(s.tempDir, "settings.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("engine: sqlite\npath: /tmp/a.db\n"), 0o600))

	os.Setenv("MEMKEEP_ENGINE", "postgres")
	os.Setenv("MEMKEEP_DB_HOST", "pg.internal")
	os.Setenv("MEMKEEP_DB_PORT", "5432")
	os.Setenv("MEMKEEP_DB_NAME", "memkeep")
	defer func() {
		os.Unsetenv("MEMKEEP_ENGINE")
		os.Unsetenv("MEMKEEP_DB_HOST")
		os.Unsetenv("MEMKEEP_DB_PORT")
		os.Unsetenv("MEMKEEP_DB_NAME")
	}()

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(EnginePostgres, cfg.Engine)
	s.Equal("pg.internal", cfg.Host)
	s.Equal(5432, cfg.Port)
}

// TestValidate tests per-engine validation.
func (s *ConfigSuite) TestValidate() {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "sqlite with path", cfg: Config{Engine: EngineSQLite, Path: "/tmp/x.db"}},
		{name: "sqlite without path", cfg: Config{Engine: EngineSQLite}, wantErr: true},
		{name: "mysql complete", cfg: Config{Engine: EngineMySQL, Host: "h", Database: "d"}},
		{name: "mysql without host", cfg: Config{Engine: EngineMySQL, Database: "d"}, wantErr: true},
		{name: "postgres without database", cfg: Config{Engine: EnginePostgres, Host: "h"}, wantErr: true},
		{name: "unknown engine", cfg: Config{Engine: "oracle"}, wantErr: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := tt.cfg.Validate()
			if tt.wantErr {
				s.Error(err)
			} else {
				s.NoError(err)
			}
		})
	}
}
