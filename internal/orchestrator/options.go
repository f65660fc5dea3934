package orchestrator

import (
	"github.com/ShayCichocki/boardroom/internal/audit"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
type RequiredConfig struct {
	// Sink receives decision records and agent reports. Nil means an in-memory sink.
	Sink audit.Sink
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
// These are only used during construction.
type orchestratorOptions struct {
	queueConfig DecisionQueueConfig
	route       func(decisionType string) string
	logger      *DebugLogger
	eventBuffer int
}

// WithQueueConfig sets the decision queue configuration.
func WithQueueConfig(c DecisionQueueConfig) Option {
	return func(o *orchestratorOptions) { o.queueConfig = c }
}

// WithRouter overrides the decision type to agent type routing.
func WithRouter(route func(decisionType string) string) Option {
	return func(o *orchestratorOptions) { o.route = route }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventBuffer sets the size of the orchestrator event channel.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		queueConfig: DefaultDecisionQueueConfig(),
		eventBuffer: 100,
	}
}
