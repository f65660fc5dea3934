// Package config handles configuration loading and management for boardroom.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides (BOARDROOM_QUEUE_POLL_INTERVAL).
const EnvPrefix = "BOARDROOM"

// ProjectConfigName is the project-level override file searched for upward from the cwd.
const ProjectConfigName = ".boardroom.yaml"

// Config holds all configuration for boardroom.
type Config struct {
	// DataDir is the audit root; decisions/ and projects/ live under it.
	DataDir string `mapstructure:"data_dir"`
	// AgentsDir holds agent manifest YAML files.
	AgentsDir string `mapstructure:"agents_dir"`
	// SkillsDir holds <AgentType>.md skills documents.
	SkillsDir string        `mapstructure:"skills_dir"`
	Queue     QueueConfig   `mapstructure:"queue"`
	Events    EventsConfig  `mapstructure:"events"`
	Tracing   TracingConfig `mapstructure:"tracing"`
	Log       LogConfig     `mapstructure:"log"`
}

// QueueConfig holds decision queue settings.
type QueueConfig struct {
	// PollInterval is how often the worker checks for a missed wake-up.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// EnforceTimeout bounds each resolution by the request's timeout.
	EnforceTimeout bool `mapstructure:"enforce_timeout"`
	// DefaultTimeout applies to requests that carry no timeout.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// EventsConfig holds event channel settings.
type EventsConfig struct {
	// BufferSize is the capacity of each agent's and the orchestrator's event channel.
	BufferSize int `mapstructure:"buffer_size"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is "stdout" or "noop".
	Exporter string `mapstructure:"exporter"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// DebugFile is the orchestrator debug log path. Empty disables it.
	DebugFile string `mapstructure:"debug_file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (BOARDROOM_*)
// 2. Project config (.boardroom.yaml in current directory or parent)
// 3. User config (~/.config/boardroom/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.DataDir = expandEnv(cfg.DataDir)
	cfg.AgentsDir = expandEnv(cfg.AgentsDir)
	cfg.SkillsDir = expandEnv(cfg.SkillsDir)
	cfg.Log.DebugFile = expandEnv(cfg.Log.DebugFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would break the orchestrator.
func (c *Config) Validate() error {
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be positive, got %s", c.Queue.PollInterval)
	}
	if c.Queue.DefaultTimeout <= 0 {
		return fmt.Errorf("queue.default_timeout must be positive, got %s", c.Queue.DefaultTimeout)
	}
	if c.Events.BufferSize <= 0 {
		return fmt.Errorf("events.buffer_size must be positive, got %d", c.Events.BufferSize)
	}
	switch c.Tracing.Exporter {
	case "", "stdout", "noop":
	default:
		return fmt.Errorf("tracing.exporter %q is not supported", c.Tracing.Exporter)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("data_dir", cfg.DataDir)
	v.Set("agents_dir", cfg.AgentsDir)
	v.Set("skills_dir", cfg.SkillsDir)
	v.Set("queue.poll_interval", cfg.Queue.PollInterval.String())
	v.Set("queue.enforce_timeout", cfg.Queue.EnforceTimeout)
	v.Set("queue.default_timeout", cfg.Queue.DefaultTimeout.String())
	v.Set("events.buffer_size", cfg.Events.BufferSize)
	v.Set("tracing.enabled", cfg.Tracing.Enabled)
	v.Set("tracing.exporter", cfg.Tracing.Exporter)
	v.Set("log.debug_file", cfg.Log.DebugFile)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", filepath.Join(".boardroom", "data"))
	v.SetDefault("agents_dir", filepath.Join(".boardroom", "agents"))
	v.SetDefault("skills_dir", filepath.Join(".boardroom", "skills"))

	v.SetDefault("queue.poll_interval", "1s")
	v.SetDefault("queue.enforce_timeout", true)
	v.SetDefault("queue.default_timeout", "30s")

	v.SetDefault("events.buffer_size", 100)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")

	v.SetDefault("log.debug_file", "")
}

// getUserConfigDir returns the XDG config directory for boardroom.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "boardroom")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "boardroom")
	}
	return filepath.Join(home, ".config", "boardroom")
}

// findProjectConfig searches for .boardroom.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DataDir:   filepath.Join(".boardroom", "data"),
		AgentsDir: filepath.Join(".boardroom", "agents"),
		SkillsDir: filepath.Join(".boardroom", "skills"),
		Queue: QueueConfig{
			PollInterval:   time.Second,
			EnforceTimeout: true,
			DefaultTimeout: 30 * time.Second,
		},
		Events: EventsConfig{
			BufferSize: 100,
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}
