package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/boardroom/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)
	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Width(22)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// printHeader prints a styled section title.
func printHeader(title string) {
	fmt.Println(headerStyle.Render(title))
}

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// statusColor picks the color for an agent or decision status.
func statusColor(status string) color.Attribute {
	switch status {
	case string(models.AgentStatusIdle), string(models.DecisionStatusResolved):
		return color.FgGreen
	case string(models.AgentStatusDeciding), string(models.AgentStatusWorking), string(models.DecisionStatusPending):
		return color.FgCyan
	case string(models.AgentStatusError), string(models.DecisionStatusFailed):
		return color.FgRed
	default:
		return color.FgYellow
	}
}
