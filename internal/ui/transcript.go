package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NichHarris/intera-client/internal/roomapi"
)

// TranscriptView renders a room's transcript as a table: one row per
// message, tagged with the pipeline that produced it.
func TranscriptView(messages []roomapi.Message) string {
	if len(messages) == 0 {
		return MutedStyle.Render("No messages yet")
	}

	headers := []string{"Time", "To", "Type", "Message"}

	var rows [][]string
	for _, msg := range messages {
		rows = append(rows, []string{
			msg.CreatedAt.Local().Format("15:04:05"),
			msg.ToUser,
			string(msg.Type),
			truncate(msg.Text, 60),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RenderTranscript outputs the transcript table directly to stdout.
func RenderTranscript(messages []roomapi.Message) {
	fmt.Println(TranscriptView(messages))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
