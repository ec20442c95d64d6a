package ui

import "github.com/charmbracelet/lipgloss"

// Semantic colors as ANSI codes, so they follow the terminal theme.
const (
	ColorSuccess lipgloss.Color = "2"
	ColorError   lipgloss.Color = "1"
	ColorWarning lipgloss.Color = "3"
	ColorInfo    lipgloss.Color = "6"
)

// Text colors
const (
	ColorPrimary lipgloss.Color = "7"
	ColorMuted   lipgloss.Color = "8"
)
