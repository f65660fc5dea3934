package models

import (
	"errors"
	"time"
)

// ErrAlreadyTerminal is returned when a resolved or failed request is transitioned again.
var ErrAlreadyTerminal = errors.New("decision already in terminal state")

// DefaultDecisionTimeout is applied when a request does not specify one.
const DefaultDecisionTimeout = 30 * time.Second

// DecisionStatus represents the lifecycle state of a decision request.
type DecisionStatus string

const (
	// DecisionStatusPending indicates the request is waiting in the queue.
	DecisionStatusPending DecisionStatus = "pending"
	// DecisionStatusResolved indicates an agent produced a result.
	DecisionStatusResolved DecisionStatus = "resolved"
	// DecisionStatusFailed indicates routing or resolution failed.
	DecisionStatusFailed DecisionStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s DecisionStatus) Valid() bool {
	switch s {
	case DecisionStatusPending, DecisionStatusResolved, DecisionStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for resolved and failed.
func (s DecisionStatus) IsTerminal() bool {
	return s == DecisionStatusResolved || s == DecisionStatusFailed
}

// Priority is an informational label. The queue is strictly FIFO and ignores it.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// DecisionRequest asks some agent to produce a domain decision.
// Everything except the outcome fields is fixed once the request is enqueued.
type DecisionRequest struct {
	// ID is a ULID generated when the request is created.
	ID string `json:"id"`
	// Type is the decision type used for routing.
	Type string `json:"type"`
	// Data is the decision payload handed to the resolving agent.
	Data map[string]any `json:"data,omitempty"`
	// RequesterID is the ID of the agent that asked for the decision.
	RequesterID string `json:"requester_id"`
	// CreatedAt is when the request was created.
	CreatedAt time.Time `json:"created_at"`
	// Priority is advisory only.
	Priority Priority `json:"priority"`
	// Timeout bounds a single resolution attempt.
	Timeout time.Duration `json:"timeout"`

	// Status is pending until the processor resolves or fails the request.
	Status DecisionStatus `json:"status"`
	// Result is set when Status is resolved.
	Result any `json:"result,omitempty"`
	// Error is set when Status is failed.
	Error string `json:"error,omitempty"`
	// DecisionMaker is the ID of the agent that handled the request, if any.
	DecisionMaker string `json:"decision_maker,omitempty"`
	// ResolvedAt is when the terminal transition happened.
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// Resolve marks the request resolved with the given result.
func (r *DecisionRequest) Resolve(maker string, result any) error {
	if r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	r.Status = DecisionStatusResolved
	r.DecisionMaker = maker
	r.Result = result
	r.ResolvedAt = time.Now()
	return nil
}

// Fail marks the request failed with the error message.
// maker may be empty when no agent was found.
func (r *DecisionRequest) Fail(maker string, err error) error {
	if r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	r.Status = DecisionStatusFailed
	r.DecisionMaker = maker
	if err != nil {
		r.Error = err.Error()
	}
	r.ResolvedAt = time.Now()
	return nil
}
