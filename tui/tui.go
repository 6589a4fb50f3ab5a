package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type doneMsg struct{ Err error }

// RunWithSpinner shows label with a spinner and elapsed time on stderr while
// fn runs. Returns fn's error.
func RunWithSpinner(label string, fn func() error) error {
	p := tea.NewProgram(newSpinnerModel(label), tea.WithOutput(os.Stderr))

	errCh := make(chan error, 1)
	go func() {
		err := fn()
		errCh <- err
		p.Send(doneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	return <-errCh
}

type spinnerModel struct {
	spinner spinner.Model
	label   string
	started time.Time
	elapsed time.Duration
	done    bool
	err     error
}

func newSpinnerModel(label string) spinnerModel {
	return spinnerModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(colorCyan)),
		),
		label:   label,
		started: time.Now(),
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		m.elapsed = time.Since(m.started)
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case doneMsg:
		m.elapsed = time.Since(m.started)
		m.done, m.err = true, msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m spinnerModel) View() string {
	took := dimText(fmt.Sprintf("(%s)", m.elapsed.Truncate(time.Second)))
	switch {
	case m.done && m.err != nil:
		return lipgloss.NewStyle().Foreground(colorRed).Render("  ✗ "+m.err.Error()) + "\n"
	case m.done:
		return lipgloss.NewStyle().Foreground(colorGreen).Render("  ✓ "+m.label) + " " + took + "\n"
	}
	return "  " + m.spinner.View() + " " + m.label + " " + took + "\n"
}
