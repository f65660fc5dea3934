package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/boardroom/internal/audit"
)

var (
	auditJSON    bool
	auditLimit   int
	auditReports bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the decision and report audit trail",
	Long: `Show the audit trail written under the data directory.

Decisions are read from <data_dir>/decisions and reports (--reports) from
<data_dir>/projects. The newest records are shown last.

Examples:
  boardroom audit                 # Last 20 decisions
  boardroom audit -n 0            # All decisions
  boardroom audit --reports       # Agent reports
  boardroom audit --json | jq '.[] | select(.status == "failed")'`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output in JSON format")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Show only the last N records (0 for all)")
	auditCmd.Flags().BoolVar(&auditReports, "reports", false, "Show agent reports instead of decisions")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sink, err := audit.NewFileSink(cfg.DataDir)
	if err != nil {
		return err
	}

	kind := audit.KindDecision
	if auditReports {
		kind = audit.KindReport
	}
	paths, err := sink.List(kind)
	if err != nil {
		return err
	}
	if auditLimit > 0 && len(paths) > auditLimit {
		paths = paths[len(paths)-auditLimit:]
	}

	if auditReports {
		return printReports(paths)
	}
	return printDecisions(paths)
}

func printDecisions(paths []string) error {
	records := make([]*audit.DecisionRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := audit.ReadDecision(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			continue
		}
		records = append(records, rec)
	}

	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		printStatus("⚠", "No decisions recorded", color.FgYellow)
		return nil
	}

	printHeader(fmt.Sprintf("Decisions (%d)", len(records)))
	for _, r := range records {
		maker := r.DecisionMaker
		if maker == "" {
			maker = "-"
		}
		fmt.Printf("%s %s %-26s %s -> %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			color.New(statusColor(string(r.Status))).Sprintf("%-8s", r.Status),
			r.Type, r.RequesterID, maker)
		if r.Error != "" {
			fmt.Println(dimStyle.Render("  " + r.Error))
		}
		if len(r.Data) > 0 {
			parts := make([]string, 0, len(r.Data))
			for _, k := range sortedKeys(r.Data) {
				parts = append(parts, fmt.Sprintf("%s=%v", k, r.Data[k]))
			}
			fmt.Println(dimStyle.Render("  " + strings.Join(parts, " ")))
		}
	}
	return nil
}

func printReports(paths []string) error {
	if auditJSON {
		out := make([]any, 0, len(paths))
		for _, p := range paths {
			r, err := audit.ReadReport(p)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				continue
			}
			out = append(out, r)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(paths) == 0 {
		printStatus("⚠", "No reports recorded", color.FgYellow)
		return nil
	}

	printHeader(fmt.Sprintf("Reports (%d)", len(paths)))
	for _, p := range paths {
		r, err := audit.ReadReport(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			continue
		}
		fmt.Printf("%s %-20s %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.AgentID, r.Type)
		fmt.Println(dimStyle.Render("  " + filepath.Base(p)))
	}
	return nil
}
