package watch

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// pollRun creates a command to poll the run
func pollRun(client *Client, runID string) tea.Cmd {
	return func() tea.Msg {
		run, err := client.Run(runID)
		return RunUpdateMsg{Run: run, Err: err}
	}
}

func retryFailed(client *Client, runID string) tea.Cmd {
	return func() tea.Msg {
		return ActionMsg{Action: "retry", Err: client.RetryFailed(runID)}
	}
}

func setPaused(client *Client, runID string, paused bool) tea.Cmd {
	return func() tea.Msg {
		if paused {
			return ActionMsg{Action: "pause", Err: client.Pause(runID)}
		}
		return ActionMsg{Action: "resume", Err: client.Resume(runID)}
	}
}

// tickCmd creates a command that ticks every 500ms for polling
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
