package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorText   = lipgloss.Color("#F2F2F2")
	ColorMuted  = lipgloss.Color("#6C7086")
	ColorAccent = lipgloss.Color("#F9E2AF")
	ColorGreen  = lipgloss.Color("#A6E3A1")
	ColorRed    = lipgloss.Color("#F38BA8")
)

// Styles
var (
	DeniedStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true).
			Padding(1, 2)

	ControlStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Padding(0, 2)

	DisabledControlStyle = lipgloss.NewStyle().
				Foreground(ColorMuted).
				Padding(0, 2)

	ActiveControlStyle = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true).
				Padding(0, 2)

	ShutterStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true).
			Padding(0, 2)

	BarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(ColorMuted)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)
)
