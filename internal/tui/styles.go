package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

var (
	subtle     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
	highlight  = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}
	textStrong = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
	green      = lipgloss.Color("#16A34A")
	yellow     = lipgloss.Color("#CA8A04")
	red        = lipgloss.Color("#DC2626")
	gray       = lipgloss.Color("#6B7280")

	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(textStrong)
	liveStyle       = lipgloss.NewStyle().Foreground(green)
	mutedStyle      = lipgloss.NewStyle().Foreground(subtle)
	bannerStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	tabStyle        = lipgloss.NewStyle().Padding(0, 1).Foreground(subtle)
	activeTabStyle  = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(textStrong).Underline(true)
	emptyStyle      = lipgloss.NewStyle().Padding(1, 2).Foreground(subtle)
	labelStyle      = lipgloss.NewStyle().Width(16).Foreground(subtle)
	focusLabelStyle = lipgloss.NewStyle().Width(16).Foreground(highlight)
	tableHeader     = lipgloss.NewStyle().Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(subtle)
	tableSelected   = lipgloss.NewStyle().Bold(true).Foreground(highlight)
)

func statusColor(st jobs.Status) lipgloss.TerminalColor {
	switch st {
	case jobs.StatusSuccess:
		return green
	case jobs.StatusRunning:
		return yellow
	case jobs.StatusFailed:
		return red
	}
	return gray
}
