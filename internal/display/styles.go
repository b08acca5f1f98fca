package display

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF0000")
	colorGreen   = lipgloss.Color("#00FF00")
	colorYellow  = lipgloss.Color("#FFFF00")
	colorCyan    = lipgloss.Color("#00FFFF")
	colorGray    = lipgloss.Color("#666666")
	colorDimGray = lipgloss.Color("#444444")
	colorMagenta = lipgloss.Color("#FF00FF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	recordingStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	busyStyle = lipgloss.NewStyle().
			Foreground(colorMagenta)

	idleStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	offlineStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	speakerStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	activeVariantStyle = lipgloss.NewStyle().
				Foreground(colorCyan).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)
)
