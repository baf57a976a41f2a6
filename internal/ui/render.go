package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/improv/internal/protocol"
)

// Param is an ordered key/value pair shown in headers and result boxes
type Param struct {
	Key   string
	Value string
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

func renderParams(params []Param, keyStyle, valueStyle lipgloss.Style, indent string) []string {
	lines := make([]string, 0, len(params))
	for _, p := range params {
		lines = append(lines, keyStyle.Render(indent+p.Key+":")+" "+valueStyle.Render(p.Value))
	}
	return lines
}

// RenderHeader renders a command header box
func RenderHeader(title, command string, params []Param, width int) string {
	width = clampWidth(width)

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(title))
	commandLine := HeaderCommandStyle.Render(command)
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(params) > 0 {
		dividerWidth := width - 6 // Account for border and padding
		divider := RenderHorizontalDivider(dividerWidth, "─")
		paramLines := renderParams(params, HeaderParamKeyStyle, HeaderParamValueStyle, "")
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(paramLines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(content)
}

// RenderSuccessBox renders a success result box
func RenderSuccessBox(title string, details []Param, width int) string {
	lines := []string{"", SuccessTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, title)), ""}
	lines = append(lines, renderParams(details, ResultKeyStyle, ResultValueStyle, "   ")...)
	lines = append(lines, "")
	return boxStyle(clampWidth(width), SuccessColor).Render(strings.Join(lines, "\n"))
}

// RenderWarningBox renders a warning result box
func RenderWarningBox(title string, details []Param, width int) string {
	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	lines = append(lines, renderParams(details, ResultKeyStyle, ResultValueStyle, "   ")...)
	lines = append(lines, "")
	return boxStyle(clampWidth(width), WarningColor).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders an error result box with troubleshooting tips
func RenderErrorBox(title string, err error, troubleshooting []string, width int) string {
	width = clampWidth(width)
	lines := []string{"", ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, title)), ""}

	if err != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+err.Error()), "")
	}

	if len(troubleshooting) > 0 {
		tips := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
		for _, tip := range troubleshooting {
			tips = append(tips, TroubleshootingItemStyle.Render("  • "+tip))
		}
		innerWidth := width - 12 // Indent within outer box
		if innerWidth < 40 {
			innerWidth = 40
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Width(innerWidth).
			Padding(0, 1).
			MarginLeft(3).
			Render(strings.Join(tips, "\n"))
		lines = append(lines, box, "")
	}

	return boxStyle(width, ErrorColor).Render(strings.Join(lines, "\n"))
}

// RenderDumpBox renders preformatted text, such as a hex dump, in a muted box
func RenderDumpBox(title, content string, width int) string {
	body := lipgloss.JoinVertical(lipgloss.Left, DumpTitleStyle.Render(title), content)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(clampWidth(width)-4).
		Padding(0, 1).
		Render(body)
}

// SignalBars maps an RSSI in dBm to a four-step bar graph
func SignalBars(rssi int) string {
	var n int
	switch {
	case rssi >= -55:
		n = 4
	case rssi >= -67:
		n = 3
	case rssi >= -75:
		n = 2
	case rssi >= -85:
		n = 1
	}
	return strings.Repeat("▮", n) + strings.Repeat("▯", 4-n)
}

// RenderNetworkTable renders access points as an aligned table
func RenderNetworkTable(aps []protocol.AccessPoint) string {
	if len(aps) == 0 {
		return StepPendingStyle.Render("  No networks found")
	}

	ssidWidth := len("SSID")
	for _, ap := range aps {
		if w := lipgloss.Width(ap.SSID); w > ssidWidth {
			ssidWidth = w
		}
	}

	row := func(ssid, rssi, bars, auth string) string {
		return fmt.Sprintf("  %-*s  %6s  %-4s  %s", ssidWidth, ssid, rssi, bars, auth)
	}

	lines := []string{TableHeaderStyle.Render(row("SSID", "RSSI", "", "SECURED"))}
	for _, ap := range aps {
		auth := "no"
		if ap.AuthRequired {
			auth = "yes"
		}
		lines = append(lines, row(ap.SSID, strconv.Itoa(ap.RSSI), SignalBars(ap.RSSI), auth))
	}
	return strings.Join(lines, "\n")
}
