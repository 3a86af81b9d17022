// Package ui holds the terminal styling shared by bmdb's CLI and its
// browse TUI.
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette: lime green accent, matching the rest of the CLI's output.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the styled components the browse TUI renders with.
type Styles struct {
	Header lipgloss.Style
	Dim    lipgloss.Style
	Error  lipgloss.Style
	Border lipgloss.Style
}

// DefaultStyles returns the lime-green palette.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Border: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
	}
}

// NoColorStyles returns unstyled components for plain terminals.
func NoColorStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle(),
		Dim:    lipgloss.NewStyle(),
		Error:  lipgloss.NewStyle(),
		Border: lipgloss.NewStyle(),
	}
}

// GetStyles picks DefaultStyles or NoColorStyles based on noColor.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
