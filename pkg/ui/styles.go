package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/soda-recon/soda/pkg/result"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4") // Purple - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	Success = lipgloss.Color("#00D26A") // Bright green
	Warning = lipgloss.Color("#FFB800") // Amber
	Error   = lipgloss.Color("#FF3838") // Red
	Info    = lipgloss.Color("#4D96FF") // Blue
	Muted   = lipgloss.Color("#6B7280") // Gray

	Foreground = lipgloss.Color("#FAFAFA")
)

// Pre-configured styles
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Bold(true)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(Foreground)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Bold(true)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Info)
)

// StatusStyle returns the style a traversal status is rendered with.
func StatusStyle(s result.Status) lipgloss.Style {
	switch s {
	case result.StatusCompleted:
		return SuccessStyle
	case result.StatusCancelled, result.StatusLimitReached:
		return WarningStyle
	default:
		return ErrorStyle
	}
}
