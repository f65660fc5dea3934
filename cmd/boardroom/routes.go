package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/boardroom/internal/router"
)

var routesJSON bool

var routesCmd = &cobra.Command{
	Use:   "routes [agent-type]",
	Short: "Show the decision routing table",
	Long: `Show which agent type resolves each decision type.

Decision types that are not listed are routed to ` + router.DefaultAgentType + `.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoutes,
}

var routeCmd = &cobra.Command{
	Use:   "route <decision-type>",
	Short: "Show which agent type resolves a decision type",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		agentType, known := router.Lookup(args[0])
		if known {
			printStatus("→", fmt.Sprintf("%s is resolved by %s", args[0], agentType), color.FgGreen)
			return
		}
		printStatus("⚠", fmt.Sprintf("%s is not in the routing table; falls back to %s", args[0], agentType), color.FgYellow)
	},
}

func init() {
	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "Output in JSON format")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	agentTypes := router.AgentTypes()
	if len(args) == 1 {
		if len(router.DecisionTypes(args[0])) == 0 {
			return fmt.Errorf("unknown agent type: %s", args[0])
		}
		agentTypes = []string{args[0]}
	}

	if routesJSON {
		table := make(map[string][]string, len(agentTypes))
		for _, at := range agentTypes {
			table[at] = router.DecisionTypes(at)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	printHeader(fmt.Sprintf("Routing table (%d agent types, fallback %s)", len(agentTypes), router.DefaultAgentType))
	for _, at := range agentTypes {
		fmt.Printf("%s%s\n", keyStyle.Render(at), strings.Join(router.DecisionTypes(at), ", "))
	}
	return nil
}
