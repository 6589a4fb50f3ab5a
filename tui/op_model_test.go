package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m OperationModel, msg tea.Msg) OperationModel {
	t.Helper()
	next, _ := m.Update(msg)
	om, ok := next.(OperationModel)
	require.True(t, ok)
	return om
}

func TestConfirmYes(t *testing.T) {
	ch := make(chan bool, 1)
	m := NewOperationModel(OpKindUp, ch)
	m = update(t, m, opPhaseMsg{Phase: OpPhaseConfirm})
	m = update(t, m, key("y"))

	assert.True(t, <-ch)
	assert.False(t, m.Cancelled)
	assert.Equal(t, OpPhaseConfirm, m.Phase)
}

func TestConfirmNo(t *testing.T) {
	ch := make(chan bool, 1)
	m := NewOperationModel(OpKindDown, ch)
	m = update(t, m, opPhaseMsg{Phase: OpPhaseConfirm})
	m = update(t, m, key("n"))

	assert.False(t, <-ch)
	assert.True(t, m.Cancelled)
	assert.Equal(t, OpPhaseDone, m.Phase)
	assert.Contains(t, m.View(), "Cancelled.")
}

func TestKeysIgnoredOutsideConfirm(t *testing.T) {
	ch := make(chan bool, 1)
	m := NewOperationModel(OpKindUp, ch)
	m = update(t, m, key("y"))
	assert.Empty(t, ch)
	assert.Equal(t, OpPhaseInit, m.Phase)
}

func TestLogLinesCapped(t *testing.T) {
	m := NewOperationModel(OpKindUp, make(chan bool, 1))
	m.MaxLogLines = 3
	for i := range 5 {
		m = update(t, m, opLogMsg{Line: fmt.Sprintf("line %d", i)})
	}
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, m.LogLines)
}

func TestLogScrollStaysPut(t *testing.T) {
	m := NewOperationModel(OpKindUp, make(chan bool, 1))
	for i := range 10 {
		m = update(t, m, opLogMsg{Line: fmt.Sprintf("line %d", i)})
	}
	m = update(t, m, key("k"))
	m = update(t, m, key("k"))
	require.Equal(t, 2, m.LogScrollBack)

	m = update(t, m, opLogMsg{Line: "new"})
	assert.Equal(t, 3, m.LogScrollBack)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Zero(t, m.LogScrollBack)
}

func TestErrorEndsOperation(t *testing.T) {
	m := NewOperationModel(OpKindUp, make(chan bool, 1))
	m = update(t, m, opErrorMsg{Err: errors.New("preflight failed: bootstrap archive not found")})

	assert.Equal(t, OpPhaseDone, m.Phase)
	view := m.View()
	assert.Contains(t, view, "Failed.")
	assert.Contains(t, view, "bootstrap archive not found")
}

func TestConfirmViewShowsSummary(t *testing.T) {
	m := NewOperationModel(OpKindUp, make(chan bool, 1))
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, opInfoMsg{Stack: "AgVpcStack-west", Region: "us-west-2"})
	m = update(t, m, opSummaryMsg{Summary: map[string]int{"create": 24, "same": 1}})
	m = update(t, m, opPhaseMsg{Phase: OpPhaseConfirm})

	view := m.View()
	assert.Contains(t, view, "24 create")
	assert.Contains(t, view, "1 unchanged")
	assert.Contains(t, view, "Apply changes?")
	assert.Contains(t, view, "AgVpcStack-west")
	assert.Contains(t, view, "us-west-2")
}

func TestDoneViewShowsOutputs(t *testing.T) {
	m := NewOperationModel(OpKindUp, make(chan bool, 1))
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, opOutputsMsg{Outputs: []Field{{Label: "AGSecurityGroupId", Value: "sg-1"}}})
	m = update(t, m, opPhaseMsg{Phase: OpPhaseDone})

	view := m.View()
	assert.Contains(t, view, "Stack deployed.")
	assert.Contains(t, view, "AGSecurityGroupId")
	assert.Contains(t, view, "sg-1")
}

func TestOpLogWriterSplitsLines(t *testing.T) {
	var got []string
	w := &OpLogWriter{send: func(msg tea.Msg) { got = append(got, msg.(opLogMsg).Line) }}

	n, err := w.Write([]byte("Updating (AgVpcStack-west)\n\n  + aws:kms:Key ag-kms"))
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, []string{"Updating (AgVpcStack-west)"}, got)

	_, _ = w.Write([]byte("-key creating\r\n  + aws:ec2:Vpc"))
	assert.Equal(t, []string{"Updating (AgVpcStack-west)", "  + aws:kms:Key ag-kms-key creating"}, got)

	w.Close()
	assert.Len(t, got, 3)
	assert.Equal(t, "  + aws:ec2:Vpc", got[2])

	n, err = w.Write([]byte("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Len(t, got, 3)
}

func TestRenderFields(t *testing.T) {
	out := RenderFields("notebook", []Field{
		{Label: "status", Value: "InService"},
		{Label: "url", Value: ""},
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "notebook")
	assert.Contains(t, lines[1], "InService")
	assert.Contains(t, lines[2], "-")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
