package models

import "time"

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent is available for work.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusDeciding indicates the agent is resolving a decision.
	AgentStatusDeciding AgentStatus = "deciding"
	// AgentStatusWorking indicates the agent is executing a task.
	AgentStatusWorking AgentStatus = "working"
	// AgentStatusError indicates the last decision or task failed.
	AgentStatusError AgentStatus = "error"
	// AgentStatusOffline indicates the agent must not be routed to.
	AgentStatusOffline AgentStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusDeciding, AgentStatusWorking,
		AgentStatusError, AgentStatusOffline:
		return true
	default:
		return false
	}
}

// AgentMetrics tracks an agent's lifetime counters.
type AgentMetrics struct {
	// DecisionsMade is the number of successfully resolved decisions.
	DecisionsMade int `json:"decisions_made"`
	// TasksCompleted is the number of successfully executed tasks.
	TasksCompleted int `json:"tasks_completed"`
	// ErrorsEncountered counts failed decisions and tasks.
	ErrorsEncountered int `json:"errors_encountered"`
	// AverageResponseTime is the incremental mean of decision latency.
	AverageResponseTime time.Duration `json:"average_response_time"`
}

// AgentInfo is a point-in-time snapshot of an agent's identity and state.
type AgentInfo struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Name         string       `json:"name"`
	Capabilities []string     `json:"capabilities,omitempty"`
	Tools        []string     `json:"tools,omitempty"`
	Status       AgentStatus  `json:"status"`
	Metrics      AgentMetrics `json:"metrics"`
}
