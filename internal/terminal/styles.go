package terminal

import "github.com/charmbracelet/lipgloss"

var (
	colorText   = lipgloss.Color("#e0def4")
	colorDim    = lipgloss.Color("#908caa")
	colorAccent = lipgloss.Color("#f6c177")
	colorRed    = lipgloss.Color("#eb6f92")
)

var (
	// The header and prompt keep the reverse-video look of the old
	// library terminals.
	headerStyle = lipgloss.NewStyle().
			Reverse(true).
			Bold(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(colorText)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	commandStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	promptStyle = lipgloss.NewStyle().
			Reverse(true).
			Foreground(colorAccent)
)
