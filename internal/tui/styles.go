package tui

import "github.com/charmbracelet/lipgloss"

// Plain ANSI indices so the UI respects the user's terminal theme.
const (
	colorAccent = lipgloss.Color("12")
	colorGood   = lipgloss.Color("10")
	colorBad    = lipgloss.Color("9")
	colorWarn   = lipgloss.Color("11")
	colorMuted  = lipgloss.Color("8")
	colorBright = lipgloss.Color("14")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorMuted).MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	successStyle   = lipgloss.NewStyle().Foreground(colorGood).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(colorBad).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	dimStyle       = lipgloss.NewStyle().Foreground(colorMuted)
	highlightStyle = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(colorGood).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)

	tierHighStyle   = lipgloss.NewStyle().Foreground(colorGood)
	tierMediumStyle = lipgloss.NewStyle().Foreground(colorWarn)
	tierLowStyle    = lipgloss.NewStyle().Foreground(colorBad)
	fieldErrorStyle = lipgloss.NewStyle().Foreground(colorBad)
)
