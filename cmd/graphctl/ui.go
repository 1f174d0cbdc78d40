package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED"))

	keyStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Width(16)

	valueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	boxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)
)

type field struct {
	key   string
	value any
}

// printSummary writes a titled key/value box.
func printSummary(w io.Writer, title string, fields []field) {
	lines := make([]string, 0, len(fields)+1)
	lines = append(lines, titleStyle.Render(title))
	for _, f := range fields {
		lines = append(lines, keyStyle.Render(f.key)+valueStyle.Render(fmt.Sprint(f.value)))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}
