package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/boardroom/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "boardroom",
	Short: "Agent orchestrator for typed business agents",
	Long: `Boardroom coordinates a pool of typed business agents (CEO, CTO, CFO, ...).

Agents emit decision requests; the orchestrator routes each request to the
single agent type authorized to resolve it, resolves requests one at a time
in arrival order, and writes every decision and report to an audit trail.

Agents are described by YAML manifests in the agents directory and pick up
their never/always rules from <AgentType>.md files in the skills directory.
Both directories are watched while 'boardroom run' is active.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with .boardroom.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates configuration, honoring --config.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
