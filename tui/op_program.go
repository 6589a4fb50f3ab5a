package tui

import (
	"bytes"
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// OperationProgram runs the fullscreen UI for one stack operation.
type OperationProgram struct {
	program   *tea.Program
	confirmCh chan bool
	ready     chan struct{}

	mu      sync.Mutex
	exitErr error
}

// NewOperationProgram creates the UI for kind. Call Start to run it.
func NewOperationProgram(kind OpKind) *OperationProgram {
	p := &OperationProgram{
		confirmCh: make(chan bool, 1),
		ready:     make(chan struct{}),
	}
	var once sync.Once
	m := NewOperationModel(kind, p.confirmCh)
	m.onInit = func() { once.Do(func() { close(p.ready) }) }
	p.program = tea.NewProgram(m, tea.WithAltScreen())
	return p
}

// Start runs the UI until the user quits.
func (p *OperationProgram) Start() error {
	_, err := p.program.Run()
	return err
}

// WaitReady blocks until the model has been initialized.
func (p *OperationProgram) WaitReady() {
	<-p.ready
}

// Send delivers msg to the model.
func (p *OperationProgram) Send(msg tea.Msg) {
	p.program.Send(msg)
}

func (p *OperationProgram) SetPhase(phase OpPhase) { p.Send(opPhaseMsg{Phase: phase}) }

func (p *OperationProgram) SetStep(label string) { p.Send(opStepMsg{Label: label}) }

// SetInfo shows the stack name and region in the header.
func (p *OperationProgram) SetInfo(stack, region string) {
	p.Send(opInfoMsg{Stack: stack, Region: region})
}

// SetSummary sets the change counts shown when confirming.
func (p *OperationProgram) SetSummary(summary map[string]int) {
	p.Send(opSummaryMsg{Summary: summary})
}

// SetOutputs sets the stack outputs shown once the operation is done.
func (p *OperationProgram) SetOutputs(outputs []Field) {
	p.Send(opOutputsMsg{Outputs: outputs})
}

// Done ends the operation. The UI stays open until the user presses q.
func (p *OperationProgram) Done(err error) {
	if err == nil {
		p.Send(opPhaseMsg{Phase: OpPhaseDone})
		return
	}
	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	p.Send(opErrorMsg{Err: err})
}

// ExitError returns the error passed to Done, if any.
func (p *OperationProgram) ExitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *OperationProgram) Quit() {
	p.program.Quit()
}

// WaitConfirm blocks until the user answers y or n. Returns false if ctx is
// cancelled first.
func (p *OperationProgram) WaitConfirm(ctx context.Context) bool {
	select {
	case v := <-p.confirmCh:
		return v
	case <-ctx.Done():
		return false
	}
}

// LogWriter returns a writer that feeds the log pane.
func (p *OperationProgram) LogWriter() *OpLogWriter {
	return &OpLogWriter{send: p.program.Send}
}

// OpLogWriter splits written bytes into lines for the log pane. A trailing
// partial line is held until its newline arrives or the writer is closed.
type OpLogWriter struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []byte
	closed  bool
}

func (w *OpLogWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.send == nil {
		return len(b), nil
	}

	w.pending = append(w.pending, b...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	return len(b), nil
}

func (w *OpLogWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) > 0 {
		w.send(opLogMsg{Line: string(line)})
	}
}

// Close flushes any partial line and discards further writes.
func (w *OpLogWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed && w.send != nil && len(w.pending) > 0 {
		w.emit(w.pending)
	}
	w.pending = nil
	w.closed = true
}
