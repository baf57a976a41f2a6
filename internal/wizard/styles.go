package wizard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/improv/internal/ui"
)

// AppName is shown at the top of every screen
const AppName = "IMPROV WI-FI WIZARD"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true).
			Padding(1, 0, 0, 2)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true).
			PaddingLeft(2)

	contentStyle = lipgloss.NewStyle().
			Padding(1, 2)

	errorBoxStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ErrorColor).
			Padding(0, 1)

	successBoxStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.SuccessColor).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().Foreground(ui.PrimaryColor)

	helpStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// renderContainer lays out the title, the screen content and the help line
func renderContainer(subtitle, content, help string) string {
	parts := []string{titleStyle.Render(AppName)}
	if subtitle != "" {
		parts = append(parts, subtitleStyle.Render(subtitle))
	}
	parts = append(parts, contentStyle.Render(content), helpStyle.Render(help))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
