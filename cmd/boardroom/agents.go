package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/boardroom/internal/orchestrator"
	"github.com/ShayCichocki/boardroom/internal/skills"
)

var agentsJSON bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agent manifests",
	Long: `List the agents described in the agents directory, in the order they are
registered. When several agents share a type, the first one that is online
resolves that type's decisions.`,
	Args: cobra.NoArgs,
	RunE: runAgents,
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "Output in JSON format")
}

// agentListing is one row of the agents command.
type agentListing struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Name         string   `json:"name,omitempty"`
	Offline      bool     `json:"offline,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	NeverRules   int      `json:"never_rules"`
	AlwaysRules  int      `json:"always_rules"`
	Manifest     string   `json:"manifest"`
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	defs, paths, err := orchestrator.ReadManifests(cmd.Context(), cfg.AgentsDir)
	if err != nil {
		return err
	}
	provider := skills.NewFileProvider(cfg.SkillsDir)

	listings := make([]agentListing, 0, len(defs))
	for i, d := range defs {
		l := agentListing{
			ID:           d.ID,
			Type:         d.Type,
			Name:         d.Name,
			Offline:      d.Offline,
			Capabilities: d.Capabilities,
			Manifest:     paths[i],
		}
		if s, err := provider.Load(d.Type); err == nil {
			l.NeverRules = len(s.Never)
			l.AlwaysRules = len(s.Always)
		}
		listings = append(listings, l)
	}

	if agentsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	}

	if len(listings) == 0 {
		printStatus("⚠", fmt.Sprintf("No agent manifests in %s", cfg.AgentsDir), color.FgYellow)
		return nil
	}

	printHeader(fmt.Sprintf("Agents (%d)", len(listings)))
	for _, l := range listings {
		status, attr := "online", color.FgGreen
		if l.Offline {
			status, attr = "offline", color.FgYellow
		}
		fmt.Printf("%s %s %s\n",
			keyStyle.Render(l.ID),
			color.New(attr).Sprintf("%-8s", status),
			l.Type)
		detail := fmt.Sprintf("never: %d  always: %d", l.NeverRules, l.AlwaysRules)
		if len(l.Capabilities) > 0 {
			detail += "  capabilities: " + strings.Join(l.Capabilities, ", ")
		}
		fmt.Println(dimStyle.Render("  " + detail))
	}
	return nil
}
