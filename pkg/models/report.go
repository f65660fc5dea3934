package models

import "time"

// Report is an immutable record produced by an agent.
type Report struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	AgentName string         `json:"agent_name"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
