package console

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/queue"
)

// FormatDuration renders a call duration as m:ss, "--" for zero.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	seconds := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// RenderQueue renders the lead queue with derived priorities.
func RenderQueue(entries []queue.RankedEntry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Number", "Status", "Priority"})
	for _, entry := range entries {
		t.AppendRow(table.Row{entry.PhoneNumber, entry.Status, entry.Priority})
	}
	if len(entries) == 0 {
		t.AppendRow(table.Row{"no pending calls", "", ""})
	}
	return t.Render()
}

// RenderCallLog renders the bounded call history, newest first.
func RenderCallLog(entries []domain.CallLogEntry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Number", "Outcome", "Duration", "Ended"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.PhoneNumber,
			entry.Outcome,
			FormatDuration(entry.Duration),
			entry.EndedAt.Format("15:04:05"),
		})
	}
	return t.Render()
}

// RenderSatisfaction renders the bounded verdict history, newest first.
func RenderSatisfaction(entries []domain.SatisfactionEntry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Agent", "Verdict", "Time"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.AgentID,
			entry.Verdict,
			entry.Timestamp.Format("15:04:05"),
		})
	}
	return t.Render()
}
