package watch

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m, tea.Batch(pollRun(m.client, m.runID), tickCmd())
	case RunUpdateMsg:
		return m.handleRunUpdate(msg)
	case ActionMsg:
		return m.handleAction(msg)
	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-8, 60), 10)
		return m, nil
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r", "R":
		if m.Run != nil && m.Run.Progress.FailedJobs > 0 && !m.Run.Paused {
			m.Notice = "Retrying failed jobs..."
			return m, retryFailed(m.client, m.runID)
		}
	case "p", "P":
		if m.Run != nil {
			return m, setPaused(m.client, m.runID, !m.Run.Paused)
		}
	}
	return m, nil
}

func (m Model) handleRunUpdate(msg RunUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}
	m.Connected = true
	m.Err = nil
	m.Run = msg.Run
	return m, nil
}

func (m Model) handleAction(msg ActionMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Notice = fmt.Sprintf("%s failed: %v", msg.Action, msg.Err)
		return m, nil
	}
	switch msg.Action {
	case "retry":
		m.Notice = "Retry requested"
	case "pause":
		m.Notice = "Run paused"
	case "resume":
		m.Notice = "Run resumed"
	}
	return m, pollRun(m.client, m.runID)
}
