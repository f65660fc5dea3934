package models

import "time"

// Task is a unit of work handed to an agent's PerformTask.
type Task struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
