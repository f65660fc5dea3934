package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/boardroom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify boardroom configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/boardroom/config.yaml
Project-specific overrides can be placed in .boardroom.yaml
Environment variables override both, e.g. BOARDROOM_QUEUE_POLL_INTERVAL=500ms`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Set %s = %s\n", args[0], args[1])
		}
		return nil
	},
}

// configKeys lists the keys in display order.
var configKeys = []string{
	"data_dir",
	"agents_dir",
	"skills_dir",
	"queue.poll_interval",
	"queue.enforce_timeout",
	"queue.default_timeout",
	"events.buffer_size",
	"tracing.enabled",
	"tracing.exporter",
	"log.debug_file",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Fprintf(os.Stderr, "\n(project overrides from %s)\n", p)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "data_dir":
		return cfg.DataDir, nil
	case "agents_dir":
		return cfg.AgentsDir, nil
	case "skills_dir":
		return cfg.SkillsDir, nil
	case "queue.poll_interval":
		return cfg.Queue.PollInterval.String(), nil
	case "queue.enforce_timeout":
		return strconv.FormatBool(cfg.Queue.EnforceTimeout), nil
	case "queue.default_timeout":
		return cfg.Queue.DefaultTimeout.String(), nil
	case "events.buffer_size":
		return strconv.Itoa(cfg.Events.BufferSize), nil
	case "tracing.enabled":
		return strconv.FormatBool(cfg.Tracing.Enabled), nil
	case "tracing.exporter":
		return cfg.Tracing.Exporter, nil
	case "log.debug_file":
		return cfg.Log.DebugFile, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "data_dir":
		cfg.DataDir = value
	case "agents_dir":
		cfg.AgentsDir = value
	case "skills_dir":
		cfg.SkillsDir = value
	case "queue.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Queue.PollInterval = d
	case "queue.enforce_timeout":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		cfg.Queue.EnforceTimeout = b
	case "queue.default_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Queue.DefaultTimeout = d
	case "events.buffer_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		cfg.Events.BufferSize = n
	case "tracing.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		cfg.Tracing.Enabled = b
	case "tracing.exporter":
		cfg.Tracing.Exporter = value
	case "log.debug_file":
		cfg.Log.DebugFile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
