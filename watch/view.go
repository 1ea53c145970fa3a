package watch

import (
	"fmt"
	"strings"

	"reelforge/types"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("🎬 Reelforge · run " + m.runID))
	b.WriteString("\n")

	if !m.Connected {
		msg := "❌ Not connected to orchestrator"
		if m.Err != nil {
			msg += ": " + m.Err.Error()
		}
		b.WriteString(ErrorStyle.Render(msg))
		b.WriteString("\n\n")
		b.WriteString(InfoStyle.Render("Press 'q' or Ctrl+C to quit"))
		return b.String()
	}

	run := m.Run
	b.WriteString(m.stateText())
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString("\n")

	p := run.Progress
	stats := fmt.Sprintf("📊 %d/%d complete | %d failed | %d processing", p.CompletedJobs, p.TotalJobs, p.FailedJobs, p.ProcessingJobs)
	if run.Engine != "" {
		stats += " | engine " + run.Engine
	}
	b.WriteString(InfoStyle.Render(stats))
	b.WriteString("\n\n")

	if len(run.Jobs) > 0 {
		var jobs strings.Builder
		for i, j := range run.Jobs {
			if i > 0 {
				jobs.WriteString("\n")
			}
			jobs.WriteString(jobLine(j))
		}
		b.WriteString(BoxStyle.Render(jobs.String()))
		b.WriteString("\n\n")
	}

	if logs := run.Logs; len(logs) > 0 {
		if len(logs) > maxLogLines {
			logs = logs[len(logs)-maxLogLines:]
		}
		b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		for _, l := range logs {
			b.WriteString(InfoStyle.Render(fmt.Sprintf("   [%s] %s", l.Timestamp.Format("15:04:05"), l.Message)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Notice != "" {
		b.WriteString(WarningStyle.Render(m.Notice))
		b.WriteString("\n")
	}
	b.WriteString(InfoStyle.Render(m.footer()))
	return b.String()
}

func (m Model) stateText() string {
	run := m.Run
	switch {
	case run.Error != nil:
		return ErrorStyle.Render(fmt.Sprintf("❌ %s: %s", run.Error.Code, run.Error.Message))
	case run.Paused:
		return WarningStyle.Render("⏸  Paused")
	case m.Finished() && run.Progress.HasErrors:
		return WarningStyle.Render("⚠️  Finished with failures")
	case m.Finished():
		return HighlightStyle.Render("✅ COMPLETE")
	case run.Message != "":
		return StatusStyle.Render("⏳ " + run.Message)
	default:
		return StatusStyle.Render("⏳ " + string(run.State))
	}
}

func (m Model) footer() string {
	keys := []string{"'q' quit"}
	if m.Run.Paused {
		keys = append(keys, "'p' resume")
	} else {
		keys = append(keys, "'p' pause")
		if m.Run.Progress.FailedJobs > 0 {
			keys = append(keys, "'r' retry failed")
		}
	}
	return "Press " + strings.Join(keys, " | ")
}

func jobLine(j types.VideoJobStatus) string {
	line := fmt.Sprintf("#%d %-10s %3d%%  %s", j.Variation+1, j.Stage, j.StageWeight, j.ID)
	switch j.Stage {
	case types.StageFailed:
		return ErrorStyle.Render(line + "  " + j.ErrorMessage)
	case types.StageCompleted:
		if j.VideoURL != "" {
			line += "  " + j.VideoURL
		}
		return StatusStyle.Render(line)
	default:
		return line
	}
}
