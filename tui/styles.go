package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	colorGreen  = lipgloss.Color("#4ade80")
	colorYellow = lipgloss.Color("#facc15")
	colorRed    = lipgloss.Color("#f87171")
	colorCyan   = lipgloss.Color("#22d3ee")
	colorWhite  = lipgloss.Color("#e5e7eb")
	colorGray   = lipgloss.Color("#6b7280")
	colorDim    = lipgloss.Color("#374151")
)

func divider(w int) string {
	return lipgloss.NewStyle().Foreground(colorDim).Render(strings.Repeat("─", w))
}

func dimText(s string) string {
	return lipgloss.NewStyle().Foreground(colorGray).Render(s)
}

func truncate(s string, maxWidth int) string {
	if maxWidth < 2 || lipgloss.Width(s) <= maxWidth {
		return s
	}
	runes := []rune(s)
	if len(runes) > maxWidth-1 {
		return string(runes[:maxWidth-1]) + "…"
	}
	return s
}

// Field is one labelled value in a key/value panel.
type Field struct {
	Label string
	Value string
}

// RenderFields renders a titled key/value panel for plain terminal output.
func RenderFields(title string, fields []Field) string {
	labelWidth := 0
	for _, f := range fields {
		if len(f.Label) > labelWidth {
			labelWidth = len(f.Label)
		}
	}

	labelStyle := lipgloss.NewStyle().Foreground(colorGray).Width(labelWidth + 2)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Render(title)}
	for _, f := range fields {
		v := f.Value
		if v == "" {
			v = "-"
		}
		lines = append(lines, "  "+labelStyle.Render(f.Label)+valueStyle.Render(v))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
