package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/internal/orchestrator"
	"github.com/ShayCichocki/boardroom/internal/router"
	"github.com/ShayCichocki/boardroom/internal/skills"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration, agent manifests and skills",
	Long: `Check that the configuration is valid, every agent manifest parses and
names a known agent type, agent IDs are unique, and every skills document
belongs to a known agent type.

Decision types whose agent type has no online agent are reported as
warnings: requests of those types will fail at runtime.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printStatus("✗", err.Error(), color.FgRed)
		return err
	}
	printStatus("✓", "Configuration is valid", color.FgGreen)

	defs, paths, err := orchestrator.ReadManifests(cmd.Context(), cfg.AgentsDir)
	if err != nil {
		printStatus("✗", err.Error(), color.FgRed)
		return err
	}

	factory := agent.NewDefaultFactory()
	problems := 0
	online := make(map[string]bool)
	for i, d := range defs {
		if !factory.Has(d.Type) {
			printStatus("✗", fmt.Sprintf("%s: unknown agent type %q", filepath.Base(paths[i]), d.Type), color.FgRed)
			problems++
			continue
		}
		if !d.Offline {
			online[d.Type] = true
		}
	}
	printStatus("✓", fmt.Sprintf("%d agent manifests parsed", len(defs)), color.FgGreen)

	skillsPaths, _ := filepath.Glob(filepath.Join(cfg.SkillsDir, "*.md"))
	for _, p := range skillsPaths {
		agentType, ok := skills.AgentTypeForPath(p)
		if !ok || !factory.Has(agentType) {
			printStatus("⚠", fmt.Sprintf("%s does not match any agent type", filepath.Base(p)), color.FgYellow)
		}
	}

	for _, at := range router.AgentTypes() {
		if !online[at] {
			printStatus("⚠", fmt.Sprintf("no online %s agent: %d decision types will fail", at, len(router.DecisionTypes(at))), color.FgYellow)
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d problems found", problems)
	}
	return nil
}
