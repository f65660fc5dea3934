package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/internal/audit"
	"github.com/ShayCichocki/boardroom/internal/config"
	"github.com/ShayCichocki/boardroom/internal/orchestrator"
	"github.com/ShayCichocki/boardroom/internal/router"
	"github.com/ShayCichocki/boardroom/internal/skills"
	"github.com/ShayCichocki/boardroom/internal/tracing"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// cliRequesterID is used when --from is not given.
const cliRequesterID = "cli"

var (
	runDecision string
	runData     []string
	runFrom     string
	runPriority string
	runTimeout  time.Duration
	runOnce     bool
	runVerbose  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load agents and process decisions",
	Long: `Load every agent manifest, then resolve decision requests as agents emit them.

Optionally submit one decision from the command line:

  boardroom run --decision budget_allocation --data amount=5000 --from ceo-1

The outcome is delivered back to the --from agent if it is registered.
With --once, the queue is drained a single time and the command exits;
otherwise it keeps running, hot-loading manifest and skills changes, until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runOrchestrator,
}

func init() {
	runCmd.Flags().StringVar(&runDecision, "decision", "", "Decision type to submit")
	runCmd.Flags().StringArrayVar(&runData, "data", nil, "Decision data as key=value (repeatable)")
	runCmd.Flags().StringVar(&runFrom, "from", cliRequesterID, "Requester agent ID")
	runCmd.Flags().StringVar(&runPriority, "priority", string(models.PriorityMedium), "Decision priority: low, medium, high, critical")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Decision timeout (default from queue.default_timeout)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Drain the queue once and exit")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print agent status changes")
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: tracing shutdown: %v\n", err)
		}
	}()

	logger, err := orchestrator.NewDebugLogger(cfg.Log.DebugFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	sink, err := audit.NewFileSink(cfg.DataDir)
	if err != nil {
		return err
	}

	orch := orchestrator.New(
		orchestrator.RequiredConfig{Sink: sink},
		orchestrator.WithQueueConfig(queueConfig(cfg)),
		orchestrator.WithLogger(logger),
		orchestrator.WithEventBuffer(cfg.Events.BufferSize),
	)
	defer orch.Stop()

	loader := orchestrator.NewLoader(
		cfg.AgentsDir,
		agent.NewDefaultFactory(),
		skills.NewFileProvider(cfg.SkillsDir),
		orch,
		orchestrator.WithAgentEventBuffer(cfg.Events.BufferSize),
	)
	defer loader.Close()

	agents, err := loader.LoadAll(ctx)
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Loaded %d agents from %s", len(agents), cfg.AgentsDir), color.FgGreen)

	var submitted *models.DecisionRequest
	if runDecision != "" {
		data, err := parseData(runData)
		if err != nil {
			return err
		}
		submitted, err = newCLIRequest(runDecision, runFrom, runPriority, runTimeout, data)
		if err != nil {
			return err
		}
		if err := orch.Submit(submitted); err != nil {
			return err
		}
		printStatus("•", fmt.Sprintf("Submitted %s (%s -> %s)", submitted.ID, submitted.Type, router.RouteFor(submitted.Type)), color.FgCyan)
	}

	if runOnce {
		n := orch.Drain(ctx)
		if submitted != nil {
			printOutcome(submitted)
		}
		stats := orch.Queue().Stats()
		fmt.Printf("\nProcessed %d decisions (%d resolved, %d failed)\n", n, stats.Resolved, stats.Failed)
		if submitted != nil && submitted.Status == models.DecisionStatusFailed {
			return fmt.Errorf("decision %s failed", submitted.ID)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(gctx)
	})
	g.Go(func() error {
		done, err := loader.Watch(gctx)
		if err != nil {
			return err
		}
		<-done
		return nil
	})
	g.Go(func() error {
		printEvents(gctx, orch.Events(), runVerbose)
		return nil
	})

	printStatus("•", fmt.Sprintf("Watching %s and %s (Ctrl+C to stop)", cfg.AgentsDir, cfg.SkillsDir), color.FgCyan)
	err = g.Wait()

	stats := orch.Queue().Stats()
	fmt.Printf("\nStopped. %d decisions (%d resolved, %d failed), %d pending\n",
		stats.Total, stats.Resolved, stats.Failed, orch.Queue().Len())
	return err
}

// queueConfig maps configuration onto the decision queue.
func queueConfig(cfg *config.Config) orchestrator.DecisionQueueConfig {
	return orchestrator.DecisionQueueConfig{
		PollInterval:   cfg.Queue.PollInterval,
		EnforceTimeout: cfg.Queue.EnforceTimeout,
		DefaultTimeout: cfg.Queue.DefaultTimeout,
	}
}

// newCLIRequest builds a pending request the same way an agent would.
func newCLIRequest(decisionType, from, priority string, timeout time.Duration, data map[string]any) (*models.DecisionRequest, error) {
	p := models.Priority(priority)
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %q", priority)
	}
	if from == "" {
		from = cliRequesterID
	}
	if timeout <= 0 {
		timeout = models.DefaultDecisionTimeout
	}
	return &models.DecisionRequest{
		ID:          agent.NewDecisionID(),
		Type:        decisionType,
		Data:        data,
		RequesterID: from,
		CreatedAt:   time.Now(),
		Priority:    p,
		Timeout:     timeout,
		Status:      models.DecisionStatusPending,
	}, nil
}

// parseData turns key=value pairs into a payload. Values that parse as
// integers, floats or booleans keep that type; everything else is a string.
func parseData(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --data %q: expected key=value", pair)
		}
		data[key] = parseValue(raw)
	}
	return data, nil
}

func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// printOutcome prints a terminal request.
func printOutcome(req *models.DecisionRequest) {
	fmt.Println()
	printHeader("Decision " + req.ID)
	fmt.Printf("%s%s\n", keyStyle.Render("type"), req.Type)
	fmt.Printf("%s%s\n", keyStyle.Render("status"), color.New(statusColor(string(req.Status))).Sprint(req.Status))
	if req.DecisionMaker != "" {
		fmt.Printf("%s%s\n", keyStyle.Render("decision maker"), req.DecisionMaker)
	}
	if req.Error != "" {
		fmt.Printf("%s%s\n", keyStyle.Render("error"), req.Error)
	}
	if req.Result != nil {
		out, err := json.MarshalIndent(req.Result, "", "  ")
		if err != nil {
			out = []byte(fmt.Sprint(req.Result))
		}
		fmt.Printf("%s%s\n", keyStyle.Render("result"), out)
	}
}

// printEvents prints orchestrator events until ctx is done or the channel closes.
func printEvents(ctx context.Context, events <-chan orchestrator.OrchestratorEvent, verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if symbol, msg, attr, show := formatEvent(ev, verbose); show {
				printStatus(symbol, msg, attr)
			}
		}
	}
}

// formatEvent renders an event as a status line. show is false for events
// that are hidden at the current verbosity.
func formatEvent(ev orchestrator.OrchestratorEvent, verbose bool) (symbol, msg string, attr color.Attribute, show bool) {
	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case orchestrator.EventDecisionQueued:
		return "•", fmt.Sprintf("%s queued %s (%s) from %s", ts, ev.DecisionID, ev.DecisionType, ev.RequesterID), color.FgCyan, true
	case orchestrator.EventDecisionResolved:
		return "✓", fmt.Sprintf("%s %s (%s) resolved by %s in %s", ts, ev.DecisionID, ev.DecisionType, ev.AgentID, ev.Duration.Round(time.Millisecond)), color.FgGreen, true
	case orchestrator.EventDecisionFailed:
		return "✗", fmt.Sprintf("%s %s (%s) failed: %s", ts, ev.DecisionID, ev.DecisionType, ev.Message), color.FgRed, true
	case orchestrator.EventAgentRegistered:
		return "+", fmt.Sprintf("%s registered %s (%s)", ts, ev.AgentID, ev.Message), color.FgGreen, true
	case orchestrator.EventReportWritten:
		return "•", fmt.Sprintf("%s report %q from %s", ts, ev.Message, ev.AgentID), color.FgCyan, true
	case orchestrator.EventAuditFailed:
		return "⚠", fmt.Sprintf("%s audit write failed: %v", ts, ev.Error), color.FgYellow, true
	case orchestrator.EventAgentStatus:
		return "·", fmt.Sprintf("%s %s %s", ts, ev.AgentID, ev.Message), color.FgWhite, verbose
	default:
		return "", "", color.Reset, false
	}
}

// sortedKeys returns map keys in order, for stable output.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
