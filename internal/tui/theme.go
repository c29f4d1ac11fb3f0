package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// twrkit Sky Blue Theme
var (
	// Primary colors - Sky blue palette
	SkyBlue      = lipgloss.Color("#87CEEB")
	DeepSkyBlue  = lipgloss.Color("#00BFFF")
	LightSkyBlue = lipgloss.Color("#B0E0E6")
	DarkSkyBlue  = lipgloss.Color("#4A90D9")
	CyanAccent   = lipgloss.Color("#00CED1")

	// Neutral colors
	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#B0B0B0")
	DarkGray  = lipgloss.Color("#404040")

	// Status colors
	Success = lipgloss.Color("#00FF88")
	Warning = lipgloss.Color("#FFD700")
	Error   = lipgloss.Color("#FF6B6B")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(DarkSkyBlue).
			Bold(true).
			Padding(0, 2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightSkyBlue).
			Bold(true)

	LogoStyle = lipgloss.NewStyle().
			Foreground(DeepSkyBlue).
			Bold(true)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SkyBlue).
			Padding(0, 1)

	ActiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(DeepSkyBlue).
				Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(LightSkyBlue)

	ValueStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(CyanAccent).
			Bold(true)

	ProgressBarStyle = lipgloss.NewStyle().
				Foreground(DeepSkyBlue)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(DarkGray)

	HelpStyle = lipgloss.NewStyle().
			Foreground(LightGray)
)

// MiniLogo returns the one-line logo
func MiniLogo() string {
	return LogoStyle.Render("◆ twrkit")
}

// Divider returns a horizontal divider
func Divider(width int) string {
	return DimStyle.Render(strings.Repeat("─", width))
}

// ProgressBar renders a progress bar
func ProgressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}
	filled := int(float64(width) * percent)
	return ProgressBarStyle.Render(strings.Repeat("=", filled)) +
		ProgressEmptyStyle.Render(strings.Repeat("-", width-filled))
}

// Bullet points
const (
	BulletPoint = "●"
	ArrowRight  = "→"
	ArrowUp     = "↑"
	ArrowDown   = "↓"
	CheckMark   = "✓"
	CrossMark   = "✗"
	WarningSign = "⚠"
)
