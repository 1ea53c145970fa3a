package types

import "time"

// RunState is the lifecycle of one submitted batch.
type RunState string

const (
	RunPlanning    RunState = "planning"
	RunDispatching RunState = "dispatching"
	RunFinished    RunState = "finished"
	RunBlocked     RunState = "blocked"
)

// LogEntry represents a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Message   string    `json:"message"`
}
