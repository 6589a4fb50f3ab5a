package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ag-research/ag-vpc/tui/assets"
)

// Version is shown next to the title. Set by main.
var Version = "dev"

func renderOperation(m OperationModel) string {
	w := m.Width
	if w <= 0 {
		w = 80
	}
	h := m.Height
	if h <= 0 {
		h = 24
	}

	iw := max(w-6, 40)

	top := renderHeader(m)
	top = append(top, divider(iw))
	top = append(top, renderOpStatus(m, iw)...)
	top = append(top, "")
	top = append(top, divider(iw))

	// chrome: border(2) + padding(2) + footer(2)
	errLines := 0
	if m.ErrorMessage != "" {
		errLines = 1
	}
	availLogLines := max(h-6-len(top)-1-errLines, 1)

	logHeaderText := "Logs"
	if m.LogScrollBack > 0 {
		logHeaderText += dimText(fmt.Sprintf(" (scrolled +%d)", m.LogScrollBack))
	}
	logSection := []string{lipgloss.NewStyle().Foreground(colorWhite).Bold(true).Render(logHeaderText)}

	logStyle := lipgloss.NewStyle().Foreground(colorGray)
	endIdx := max(len(m.LogLines)-m.LogScrollBack, 0)
	startIdx := max(endIdx-availLogLines, 0)
	visible := m.LogLines[startIdx:endIdx]
	for _, line := range visible {
		logSection = append(logSection, logStyle.Render("  "+truncate(line, iw-2)))
	}
	for i := len(visible); i < availLogLines; i++ {
		logSection = append(logSection, "")
	}

	all := append(top, logSection...)
	if m.ErrorMessage != "" {
		all = append(all, lipgloss.NewStyle().Foreground(colorRed).Render("  Error: "+truncate(m.ErrorMessage, iw-8)))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorGray).
		Padding(1, 2).
		Width(w - 2).
		MaxHeight(h - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, all...))

	return box + "\n" + renderOpFooter(m)
}

// renderHeader places the logo to the left of the title and stack info.
func renderHeader(m OperationModel) []string {
	logoLines := strings.Split(assets.Logo, "\n")
	logoStyle := lipgloss.NewStyle().Foreground(colorCyan)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Render("ag-vpc") + " " +
		lipgloss.NewStyle().Foreground(colorGray).Render(Version)
	info := []string{title, dimText(opTitle(m.Kind))}
	if m.Stack != "" {
		info = append(info, "", dimText("stack  ")+m.Stack)
	}
	if m.Region != "" {
		info = append(info, dimText("region ")+m.Region)
	}

	logoWidth := 0
	for _, l := range logoLines {
		logoWidth = max(logoWidth, lipgloss.Width(l))
	}

	var lines []string
	for i := range max(len(logoLines), len(info)) {
		left := ""
		if i < len(logoLines) {
			left = logoStyle.Render(logoLines[i])
		}
		right := ""
		if i < len(info) {
			right = info[i]
		}
		pad := max(logoWidth+3-lipgloss.Width(left), 1)
		lines = append(lines, left+strings.Repeat(" ", pad)+right)
	}
	return lines
}

func opTitle(k OpKind) string {
	switch k {
	case OpKindDown:
		return "destroy stack"
	case OpKindPreview:
		return "preview changes"
	default:
		return "deploy stack"
	}
}

func renderSummary(summary map[string]int) string {
	var parts []string
	if n := summary["create"]; n > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorGreen).Render(fmt.Sprintf("%d create", n)))
	}
	if n := summary["update"]; n > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorYellow).Render(fmt.Sprintf("%d update", n)))
	}
	if n := summary["replace"]; n > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorYellow).Render(fmt.Sprintf("%d replace", n)))
	}
	if n := summary["delete"]; n > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorRed).Render(fmt.Sprintf("%d delete", n)))
	}
	if n := summary["same"]; n > 0 {
		parts = append(parts, dimText(fmt.Sprintf("%d unchanged", n)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, "  ")
}

func renderOpStatus(m OperationModel, iw int) []string {
	var lines []string

	switch m.Phase {
	case OpPhaseConfirm:
		if s := renderSummary(m.Summary); s != "" {
			lines = append(lines, s)
		}
		promptLabel := "Apply changes?"
		if m.Kind == OpKindDown {
			promptLabel = "Destroy the stack? The key enters its pending deletion window."
		}
		lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(colorYellow).Render(promptLabel)+
			"  "+dimText("(y/n)"))

	case OpPhaseDone:
		switch {
		case m.Cancelled:
			lines = append(lines, lipgloss.NewStyle().Foreground(colorYellow).Render("  Cancelled."))
		case m.ErrorMessage != "":
			lines = append(lines, lipgloss.NewStyle().Foreground(colorRed).Render("  Failed."))
		default:
			lines = append(lines, lipgloss.NewStyle().Foreground(colorGreen).Render("  "+doneLabel(m.Kind)))
			if m.Kind == OpKindPreview {
				if s := renderSummary(m.Summary); s != "" {
					lines = append(lines, s)
				}
			}
			for _, f := range m.Outputs {
				lines = append(lines, "  "+dimText(f.Label+" ")+truncate(f.Value, iw-len(f.Label)-3))
			}
		}

	default:
		lines = append(lines, lipgloss.NewStyle().Foreground(colorCyan).Render(m.Spinner.View())+
			" "+lipgloss.NewStyle().Foreground(colorWhite).Render(m.StepLabel))
	}

	return lines
}

func doneLabel(k OpKind) string {
	switch k {
	case OpKindDown:
		return "Stack destroyed."
	case OpKindPreview:
		return "Preview complete."
	default:
		return "Stack deployed."
	}
}

func renderOpFooter(m OperationModel) string {
	keyStyle := lipgloss.NewStyle().Foreground(colorWhite).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(colorGray)
	sep := descStyle.Render("  ")

	shortcuts := keyStyle.Render("q") + descStyle.Render(" quit")
	if m.Phase == OpPhaseConfirm {
		shortcuts += sep +
			keyStyle.Render("y") + descStyle.Render(" apply") + sep +
			keyStyle.Render("n") + descStyle.Render(" cancel")
	}
	shortcuts += sep + keyStyle.Render("↑↓") + descStyle.Render(" scroll")

	return lipgloss.NewStyle().PaddingLeft(2).Render(shortcuts)
}
