package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventAgentRegistered indicates an agent was added or replaced in the registry.
	EventAgentRegistered EventType = "agent_registered"
	// EventAgentStatus indicates a registered agent changed status.
	EventAgentStatus EventType = "agent_status"
	// EventDecisionQueued indicates a decision request entered the queue.
	EventDecisionQueued EventType = "decision_queued"
	// EventDecisionResolved indicates a decision was resolved by an agent.
	EventDecisionResolved EventType = "decision_resolved"
	// EventDecisionFailed indicates routing or resolution failed for a decision.
	EventDecisionFailed EventType = "decision_failed"
	// EventReportWritten indicates an agent report reached the audit sink.
	EventReportWritten EventType = "report_written"
	// EventAuditFailed indicates an audit write failed. State is unaffected.
	EventAuditFailed EventType = "audit_failed"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// DecisionID is the related decision request, if applicable.
	DecisionID string
	// DecisionType is the decision type, if applicable.
	DecisionType string
	// AgentID is the related agent: the decision maker, the reporter, or the registrant.
	AgentID string
	// RequesterID is the agent that asked for the decision, if applicable.
	RequesterID string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is how long a resolution took.
	Duration time.Duration
}
