package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	bgColor = lipgloss.Color("#0a0a0a")

	green  = lipgloss.Color("#00FF00")
	yellow = lipgloss.Color("#FFFF00")
	red    = lipgloss.Color("#FF0000")
	cyan   = lipgloss.Color("#00FFFF")

	white     = lipgloss.Color("#FFFFFF")
	grayText  = lipgloss.Color("#666666")
	darkGray  = lipgloss.Color("#444444")
	lightGray = lipgloss.Color("#999999")
)

var (
	normalStyle = lipgloss.NewStyle().Foreground(grayText)
	brightStyle = lipgloss.NewStyle().Foreground(white)

	greenStyle  = lipgloss.NewStyle().Foreground(green)
	yellowStyle = lipgloss.NewStyle().Foreground(yellow).Bold(true)
	redStyle    = lipgloss.NewStyle().Foreground(red)
	cyanStyle   = lipgloss.NewStyle().Foreground(cyan)
	grayStyle   = lipgloss.NewStyle().Foreground(lightGray)
	dimStyle    = lipgloss.NewStyle().Foreground(darkGray)

	bannerStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(lipgloss.Color("#880000")).
			Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Background(bgColor).
			Bold(true)

	shortcutTextStyle = lipgloss.NewStyle().
				Foreground(grayText).
				Background(bgColor)
)
