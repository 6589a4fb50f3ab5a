package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// OpKind distinguishes the stack operations that drive the TUI.
type OpKind int

const (
	OpKindUp OpKind = iota
	OpKindDown
	OpKindPreview
)

// OpPhase tracks the current phase of a stack operation.
type OpPhase int

const (
	OpPhaseInit      OpPhase = iota
	OpPhasePreflight         // up only
	OpPhasePreview           // up and preview
	OpPhaseConfirm           // up and down
	OpPhaseApply             // up only
	OpPhaseDestroy           // down only
	OpPhaseDone
)

// Message types for the operation model.
type (
	opPhaseMsg   struct{ Phase OpPhase }
	opStepMsg    struct{ Label string }
	opSummaryMsg struct{ Summary map[string]int }
	opInfoMsg    struct{ Stack, Region string }
	opOutputsMsg struct{ Outputs []Field }
	opErrorMsg   struct{ Err error }
	opLogMsg     struct{ Line string }
)

// OperationModel is the BubbleTea model for stack operations.
type OperationModel struct {
	Kind      OpKind
	Phase     OpPhase
	Spinner   spinner.Model
	StepLabel string

	Stack  string
	Region string

	Summary      map[string]int
	Outputs      []Field
	LogLines     []string
	MaxLogLines  int
	ErrorMessage string
	Cancelled    bool

	// 0 follows the tail, >0 is scrolled up by N lines.
	LogScrollBack int

	confirmCh chan bool
	onInit    func()

	Width  int
	Height int
}

// NewOperationModel creates a new OperationModel.
func NewOperationModel(kind OpKind, confirmCh chan bool) OperationModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(colorCyan)),
	)
	return OperationModel{
		Kind:        kind,
		Phase:       OpPhaseInit,
		Spinner:     s,
		StepLabel:   "Initializing...",
		LogLines:    make([]string, 0),
		MaxLogLines: 200,
		confirmCh:   confirmCh,
	}
}

// Init implements tea.Model.
func (m OperationModel) Init() tea.Cmd {
	if m.onInit != nil {
		m.onInit()
	}
	return m.Spinner.Tick
}

func (m OperationModel) answer(v bool) OperationModel {
	select {
	case m.confirmCh <- v:
	default:
	}
	if !v {
		m.Cancelled = true
		m.Phase = OpPhaseDone
	}
	return m
}

// Update implements tea.Model.
func (m OperationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.Phase == OpPhaseConfirm {
				return m.answer(false), nil
			}
			return m, tea.Quit
		case "y", "Y":
			if m.Phase == OpPhaseConfirm {
				m = m.answer(true)
			}
		case "n", "N":
			if m.Phase == OpPhaseConfirm {
				return m.answer(false), nil
			}
		case "up", "k":
			m.LogScrollBack = clampScroll(m.LogScrollBack+1, len(m.LogLines))
		case "down", "j":
			if m.LogScrollBack > 0 {
				m.LogScrollBack--
			}
		case "pgup":
			m.LogScrollBack = clampScroll(m.LogScrollBack+10, len(m.LogLines))
		case "pgdown":
			m.LogScrollBack = max(m.LogScrollBack-10, 0)
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case opPhaseMsg:
		m.Phase = msg.Phase

	case opStepMsg:
		m.StepLabel = msg.Label

	case opInfoMsg:
		m.Stack = msg.Stack
		m.Region = msg.Region

	case opSummaryMsg:
		m.Summary = msg.Summary

	case opOutputsMsg:
		m.Outputs = msg.Outputs

	case opErrorMsg:
		m.ErrorMessage = msg.Err.Error()
		m.Phase = OpPhaseDone

	case opLogMsg:
		wasAtBottom := m.LogScrollBack == 0
		m.LogLines = append(m.LogLines, msg.Line)
		if len(m.LogLines) > m.MaxLogLines {
			m.LogLines = m.LogLines[len(m.LogLines)-m.MaxLogLines:]
		}
		// Keep a scrolled-up reader's position stable.
		if !wasAtBottom {
			m.LogScrollBack = clampScroll(m.LogScrollBack+1, len(m.LogLines))
		}
	}

	return m, nil
}

func clampScroll(scrollBack, totalLines int) int {
	if scrollBack > totalLines {
		return totalLines
	}
	return scrollBack
}

// View implements tea.Model.
func (m OperationModel) View() string {
	return renderOperation(m)
}
