// Package tui implements a terminal user interface for scenario execution.
// It talks to the engine over the same pkg/ipc JSON-RPC protocol a
// standalone desktop UI front-end would use, rendering an interactive
// Bubble Tea program in the terminal over a narrow step/output/progress
// surface.
package tui

import "github.com/charmbracelet/lipgloss"

const (
	GlyphPending = "○"
	GlyphCurrent = "▸"
	GlyphPassed  = "✓"
	GlyphFailed  = "✗"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)

	stepNormal  = lipgloss.NewStyle().Foreground(colorWhite)
	stepCurrent = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	stepPassed  = lipgloss.NewStyle().Foreground(colorGreen)
	stepFailed  = lipgloss.NewStyle().Foreground(colorRed)

	panelBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim)
	panelTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	outputStyle = lipgloss.NewStyle().Foreground(colorWhite)

	errorStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(colorYellow)
)
