package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned by Select when the user presses ctrl+c.
var ErrAborted = errors.New("aborted")

const selectMaxVisible = 10

// selectModel is an inline, scrollable single-choice list.
type selectModel struct {
	label   string
	options []string
	cursor  int
	offset  int
	height  int
	chosen  bool
	aborted bool
}

func newSelectModel(label string, options []string, defaultIdx int) selectModel {
	m := selectModel{
		label:   label,
		options: options,
		height:  min(selectMaxVisible, len(options)),
	}
	if defaultIdx >= 0 && defaultIdx < len(options) {
		m.cursor = defaultIdx
	}
	m.follow()
	return m
}

// follow scrolls the window so the cursor stays visible.
func (m *selectModel) follow() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch km.String() {
	case "enter":
		m.chosen = true
		return m, tea.Quit
	case "ctrl+c", "esc":
		m.aborted = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.options) - 1
	}
	m.follow()
	return m, nil
}

func (m selectModel) View() string {
	act := lipgloss.NewStyle().Foreground(colorCyan)
	if m.chosen {
		return fmt.Sprintf("  %s: %s\n", m.label, act.Render(m.options[m.cursor]))
	}
	if m.aborted {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(colorDim)
	inact := lipgloss.NewStyle().Foreground(colorGray)
	scrollable := len(m.options) > m.height

	var b strings.Builder
	fmt.Fprintf(&b, "  %s  %s\n", m.label, dim.Render("↑/↓ select, Enter confirm"))
	if scrollable {
		if m.offset > 0 {
			b.WriteString("    " + dim.Render(fmt.Sprintf("↑ %d more", m.offset)))
		}
		b.WriteString("\n")
	}
	for i := m.offset; i < m.offset+m.height; i++ {
		if i == m.cursor {
			b.WriteString("    " + act.Bold(true).Render("›") + " " + act.Render(m.options[i]) + "\n")
		} else {
			b.WriteString("      " + inact.Render(m.options[i]) + "\n")
		}
	}
	if scrollable {
		if below := len(m.options) - m.offset - m.height; below > 0 {
			b.WriteString("    " + dim.Render(fmt.Sprintf("↓ %d more", below)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Select shows an arrow-key list on stdout and returns the chosen option.
func Select(label string, options []string, defaultIdx int) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options")
	}
	final, err := tea.NewProgram(newSelectModel(label, options, defaultIdx), tea.WithOutput(os.Stdout)).Run()
	if err != nil {
		return "", err
	}
	m := final.(selectModel)
	if m.aborted {
		return "", ErrAborted
	}
	return m.options[m.cursor], nil
}
