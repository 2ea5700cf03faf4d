// Package config loads agentloop settings from an optional YAML/JSON file,
// a .env file and AGENTLOOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hupe1980/agentloop/logging"
)

// EnvPrefix prefixes environment overrides, e.g. AGENTLOOP_RUNNER_MAX_TURNS.
const EnvPrefix = "AGENTLOOP"

// Config is the root configuration.
type Config struct {
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner" json:"runner"`
	Memory  MemoryConfig  `mapstructure:"memory" yaml:"memory" json:"memory"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// RunnerConfig tunes the execution loop.
type RunnerConfig struct {
	MaxTurns         int           `mapstructure:"max_turns" yaml:"max_turns" json:"max_turns"`
	MaxParallelTools int           `mapstructure:"max_parallel_tools" yaml:"max_parallel_tools" json:"max_parallel_tools"`
	PersistTimeout   time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout" json:"persist_timeout"`
}

// MemoryConfig selects the session memory backend.
type MemoryConfig struct {
	// Backend is one of "sqlite", "postgres", "mysql" or "inmemory".
	Backend  string         `mapstructure:"backend" yaml:"backend" json:"backend"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database" json:"database"`
}

// LoggingConfig configures the zerolog backed logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level" json:"level"`
	File    string `mapstructure:"file" yaml:"file" json:"file"`
	Console bool   `mapstructure:"console" yaml:"console" json:"console"`
	Pretty  bool   `mapstructure:"pretty" yaml:"pretty" json:"pretty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Runner: RunnerConfig{
			MaxTurns:       10,
			PersistTimeout: 10 * time.Second,
		},
		Memory: MemoryConfig{
			Backend:  "sqlite",
			Database: DatabaseConfig{Driver: "sqlite", Database: ":memory:", Table: "sessions"},
		},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// Loader reads configuration. The zero value only consults the environment.
type Loader struct {
	// ConfigPath is an optional YAML/JSON/TOML file. Missing files are ignored.
	ConfigPath string
	// EnvFiles are loaded with godotenv before reading the environment;
	// missing files are ignored.
	EnvFiles []string
}

// Load is shorthand for (&Loader{ConfigPath: path, EnvFiles: []string{".env"}}).Load().
func Load(path string) (*Config, error) {
	return (&Loader{ConfigPath: path, EnvFiles: []string{".env"}}).Load()
}

// Load merges defaults, file and environment into a validated Config.
func (l *Loader) Load() (*Config, error) {
	for _, f := range l.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.ConfigPath != "" {
		if _, err := os.Stat(l.ConfigPath); err == nil {
			v.SetConfigFile(l.ConfigPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Memory.Database.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("runner.max_turns", d.Runner.MaxTurns)
	v.SetDefault("runner.max_parallel_tools", d.Runner.MaxParallelTools)
	v.SetDefault("runner.persist_timeout", d.Runner.PersistTimeout)

	v.SetDefault("memory.backend", d.Memory.Backend)
	v.SetDefault("memory.database.driver", d.Memory.Database.Driver)
	v.SetDefault("memory.database.host", d.Memory.Database.Host)
	v.SetDefault("memory.database.port", d.Memory.Database.Port)
	v.SetDefault("memory.database.database", d.Memory.Database.Database)
	v.SetDefault("memory.database.username", d.Memory.Database.Username)
	v.SetDefault("memory.database.password", d.Memory.Database.Password)
	v.SetDefault("memory.database.ssl_mode", d.Memory.Database.SSLMode)
	v.SetDefault("memory.database.table", d.Memory.Database.Table)
	v.SetDefault("memory.database.max_conns", d.Memory.Database.MaxConns)
	v.SetDefault("memory.database.max_idle", d.Memory.Database.MaxIdle)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Runner.MaxTurns < 0 {
		return fmt.Errorf("runner.max_turns must be non-negative")
	}
	if c.Runner.MaxParallelTools < 0 {
		return fmt.Errorf("runner.max_parallel_tools must be non-negative")
	}

	switch c.Memory.Backend {
	case "inmemory":
		return nil
	case "sqlite", "postgres", "mysql":
		if c.Memory.Database.Dialect() != c.Memory.Backend {
			return fmt.Errorf("memory.backend %q does not match database driver %q", c.Memory.Backend, c.Memory.Database.Driver)
		}
		if err := c.Memory.Database.Validate(); err != nil {
			return fmt.Errorf("memory.database: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown memory.backend %q", c.Memory.Backend)
	}
}

// Logger builds the configured zerolog logger.
func (c LoggingConfig) Logger() (*logging.ZerologAdapter, error) {
	return logging.New(logging.Config{
		Level:   c.Level,
		File:    c.File,
		Console: c.Console,
		Pretty:  c.Pretty,
	})
}
