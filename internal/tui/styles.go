package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#A78BFA") // purple
	successColor = lipgloss.Color("#10B981") // green
	warningColor = lipgloss.Color("#F59E0B") // amber
	errorColor   = lipgloss.Color("#F87171") // red
	mutedColor   = lipgloss.Color("#9CA3AF") // gray

	titleStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)
