package watch

import (
	"time"

	"reelforge/state"
)

// RunUpdateMsg is sent when we receive the run from the orchestrator
type RunUpdateMsg struct {
	Run *state.RunDetail
	Err error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}

// ActionMsg reports the outcome of a run control request
type ActionMsg struct {
	Action string
	Err    error
}
