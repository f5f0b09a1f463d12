package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorNeonGreen  = lipgloss.Color("#00FF99") // Answer
	colorNeonPurple = lipgloss.Color("#874BFD") // Question
	colorTextSub    = lipgloss.Color("#64748B") // Help
	colorDanger     = lipgloss.Color("#FF0055")

	questionStyle = lipgloss.NewStyle().Foreground(colorNeonPurple).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(colorNeonGreen)
	subtle        = lipgloss.NewStyle().Foreground(colorTextSub)
	danger        = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
)
