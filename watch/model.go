package watch

import (
	"reelforge/state"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// maxLogLines is the number of run log lines shown
const maxLogLines = 8

// Model follows one run on the orchestrator
type Model struct {
	client *Client
	runID  string

	Run       *state.RunDetail
	Err       error
	Notice    string
	Connected bool

	bar progress.Model
}

// NewModel creates a model that watches runID
func NewModel(orchestratorURL, runID string) Model {
	return Model{
		client: NewClient(orchestratorURL),
		runID:  runID,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		pollRun(m.client, m.runID),
		tickCmd(),
	)
}

// Finished reports whether every job of the run has settled.
func (m Model) Finished() bool {
	return m.Run != nil && m.Run.Progress.IsComplete
}

// percent is the overall run progress in [0,1].
func (m Model) percent() float64 {
	if m.Run == nil {
		return 0
	}
	return float64(m.Run.Progress.OverallProgressPct) / 100
}
