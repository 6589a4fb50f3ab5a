package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/ag-research/ag-vpc/infra"
	"github.com/ag-research/ag-vpc/lifecycle"
	"github.com/ag-research/ag-vpc/tui"
)

var (
	errCancelled = errors.New("cancelled")
	errNeedsYes  = errors.New("no terminal to confirm on; pass --yes")
)

// stackOp drives one stack operation. With a terminal it runs inside the
// fullscreen operation TUI. With --yes it logs to stderr and never prompts.
type stackOp struct {
	prog *tui.OperationProgram
	out  io.Writer
}

func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// runStackOp runs body and returns its error once the TUI (if any) is closed.
func runStackOp(ctx context.Context, kind tui.OpKind, yes bool, body func(op *stackOp) error) error {
	op := &stackOp{out: os.Stderr}
	if !interactive() {
		if !yes && kind != tui.OpKindPreview {
			return errNeedsYes
		}
		return body(op)
	}
	if yes {
		return body(op)
	}

	op.prog = tui.NewOperationProgram(kind)
	tuiDone := make(chan error, 1)
	go func() { tuiDone <- op.prog.Start() }()
	op.prog.WaitReady()

	logWriter := op.prog.LogWriter()
	op.out = logWriter
	restore := redirectLogs(logWriter)
	defer func() {
		logWriter.Close()
		restore()
	}()

	op.prog.SetInfo(cfg.StackName, cfg.Region)

	go func() {
		err := body(op)
		if errors.Is(err, errCancelled) {
			return // the model already shows the cancellation
		}
		op.prog.Done(err)
	}()

	if err := <-tuiDone; err != nil {
		fmt.Fprintf(os.Stderr, "[tui] error: %v\n", err)
	}
	return op.prog.ExitError()
}

func (o *stackOp) phase(p tui.OpPhase, step string) {
	if o.prog == nil {
		logrus.Info(step)
		return
	}
	o.prog.SetPhase(p)
	o.prog.SetStep(step)
}

// confirm asks before a change. Non-interactive runs are pre-approved.
func (o *stackOp) confirm(ctx context.Context, summary map[string]int) bool {
	if o.prog == nil {
		return true
	}
	if summary != nil {
		o.prog.SetSummary(summary)
	}
	o.prog.SetPhase(tui.OpPhaseConfirm)
	return o.prog.WaitConfirm(ctx)
}

func (o *stackOp) summary(s map[string]int) {
	if o.prog != nil {
		o.prog.SetSummary(s)
	}
}

func (o *stackOp) outputs(out *infra.StackOutputs) {
	if o.prog != nil {
		o.prog.SetOutputs(outputFields(out))
	}
}

func changeSummary[K ~string](in map[K]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

func hasChanges(s map[string]int) bool {
	return s["create"] > 0 || s["update"] > 0 || s["replace"] > 0 || s["delete"] > 0
}

func outputFields(o *infra.StackOutputs) []tui.Field {
	return []tui.Field{
		{Label: infra.OutputKeyARN, Value: o.KeyARN},
		{Label: infra.OutputSubnets, Value: strings.Join(o.SubnetIDs, ",")},
		{Label: infra.OutputSecurityGroupID, Value: o.SecurityGroupID},
		{Label: infra.OutputVPCID, Value: o.VPCID},
		{Label: infra.OutputRoleARN, Value: o.RoleARN},
		{Label: infra.OutputNotebookName, Value: o.NotebookName},
	}
}

// printOutputs writes outputs as KEY=value lines to stdout for scripting.
func printOutputs(w io.Writer, o *infra.StackOutputs) {
	for _, f := range outputFields(o) {
		fmt.Fprintf(w, "%s=%s\n", f.Label, f.Value)
	}
}

// ── preview ──────────────────────────────────────────────────────

func runPreview(ctx context.Context) error {
	stateDir, err := StateDir()
	if err != nil {
		return err
	}
	return runStackOp(ctx, tui.OpKindPreview, false, func(op *stackOp) error {
		op.phase(tui.OpPhasePreview, "Previewing stack changes...")
		result, err := infra.Preview(ctx, newStackConfig(), stateDir, op.out)
		if err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		op.summary(changeSummary(result.ChangeSummary))
		return nil
	})
}

// ── up ───────────────────────────────────────────────────────────

func runUp(ctx context.Context, yes, skipPreflight bool) error {
	stateDir, err := StateDir()
	if err != nil {
		return err
	}
	if cfg.ArchiveLocation == "" {
		return fmt.Errorf("%w\nUse --archive-location or 'ag-vpc configure'", lifecycle.ErrMissingArchive)
	}

	var outputs *infra.StackOutputs
	err = runStackOp(ctx, tui.OpKindUp, yes, func(op *stackOp) error {
		if !skipPreflight {
			op.phase(tui.OpPhasePreflight, "Checking credentials and archive...")
			if err := runPreflight(ctx); err != nil {
				return fmt.Errorf("preflight failed: %w", err)
			}
		}

		op.phase(tui.OpPhasePreview, "Previewing stack changes...")
		result, err := infra.Preview(ctx, newStackConfig(), stateDir, op.out)
		if err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		summary := changeSummary(result.ChangeSummary)
		if hasChanges(summary) && !op.confirm(ctx, summary) {
			return errCancelled
		}

		op.phase(tui.OpPhaseApply, "Deploying stack...")
		outputs, err = infra.Up(ctx, newStackConfig(), stateDir, op.out)
		if err != nil {
			return fmt.Errorf("up failed: %w", err)
		}
		op.outputs(outputs)
		logrus.Infof("stack %s deployed in %s", cfg.StackName, cfg.Region)
		return nil
	})
	if err != nil {
		return err
	}
	if outputs != nil {
		printOutputs(os.Stdout, outputs)
	}
	return nil
}

// ── down ─────────────────────────────────────────────────────────

func runDown(ctx context.Context, yes bool) error {
	stateDir, err := StateDir()
	if err != nil {
		return err
	}
	return runStackOp(ctx, tui.OpKindDown, yes, func(op *stackOp) error {
		if !op.confirm(ctx, nil) {
			return errCancelled
		}
		op.phase(tui.OpPhaseDestroy, "Destroying stack...")
		if err := infra.Down(ctx, newStackConfig(), stateDir, op.out); err != nil {
			return fmt.Errorf("down failed: %w", err)
		}
		return nil
	})
}

// ── outputs ──────────────────────────────────────────────────────

func runOutputs(ctx context.Context, plain bool) error {
	stateDir, err := StateDir()
	if err != nil {
		return err
	}
	out, err := infra.Outputs(ctx, newStackConfig(), stateDir)
	if errors.Is(err, infra.ErrNoStack) {
		return fmt.Errorf("%w\nRun 'ag-vpc up' first", err)
	}
	if err != nil {
		return err
	}
	if plain || !interactive() {
		printOutputs(os.Stdout, out)
		return nil
	}
	fmt.Println(tui.RenderFields(cfg.StackName+" outputs", outputFields(out)))
	return nil
}

// ── notebook ─────────────────────────────────────────────────────

func notebookFields(st *NotebookStatus) []tui.Field {
	return []tui.Field{
		{Label: "name", Value: st.Name},
		{Label: "status", Value: string(st.Status)},
		{Label: "instance type", Value: st.InstanceType},
		{Label: "subnet", Value: st.SubnetID},
		{Label: "kms key", Value: st.KMSKeyID},
		{Label: "url", Value: st.URL},
		{Label: "failure", Value: st.FailureReason},
	}
}

func runStatus(ctx context.Context) error {
	client, err := awsc.SageMaker(ctx)
	if err != nil {
		return err
	}
	st, err := getNotebookStatus(ctx, client, cfg.NotebookName)
	if err != nil {
		if isAuthError(err) {
			return fmt.Errorf("AWS credentials invalid or expired: %w", err)
		}
		return err
	}
	fmt.Println(tui.RenderFields("notebook", notebookFields(st)))
	return nil
}

func runStart(ctx context.Context) error {
	client, err := awsc.SageMaker(ctx)
	if err != nil {
		return err
	}
	var st *NotebookStatus
	err = tui.RunWithSpinner("Starting "+cfg.NotebookName, func() error {
		var err error
		st, err = startNotebook(ctx, client, cfg.NotebookName)
		return err
	})
	if st != nil {
		fmt.Println(tui.RenderFields("notebook", notebookFields(st)))
	}
	return err
}

func runStop(ctx context.Context) error {
	client, err := awsc.SageMaker(ctx)
	if err != nil {
		return err
	}
	return tui.RunWithSpinner("Stopping "+cfg.NotebookName, func() error {
		return stopNotebook(ctx, client, cfg.NotebookName)
	})
}

// ── render-script ────────────────────────────────────────────────

// runRenderScript prints the on-create script with the values of the
// deployed stack, or placeholders when it has not been deployed.
func runRenderScript(ctx context.Context, w io.Writer, encode bool) error {
	d := placeholderDeclared(cfg.Region)
	if stateDir, err := StateDir(); err == nil {
		out, err := infra.Outputs(ctx, newStackConfig(), stateDir)
		switch {
		case err == nil:
			d = lifecycle.Declared{SecurityGroupID: out.SecurityGroupID, SubnetIDs: out.SubnetIDs, KeyARN: out.KeyARN}
		case errors.Is(err, infra.ErrNoStack):
			logrus.Debugf("using placeholders: %v", err)
		default:
			logrus.Warnf("using placeholders, could not read outputs: %v", err)
		}
	}
	return writeScript(w, d, cfg.ArchiveLocation, encode)
}

func placeholderDeclared(region string) lifecycle.Declared {
	return lifecycle.Declared{
		SecurityGroupID: "sg-PLACEHOLDER",
		SubnetIDs:       []string{"subnet-PLACEHOLDER"},
		KeyARN:          "arn:aws:kms:" + region + ":000000000000:key/PLACEHOLDER",
	}
}

func writeScript(w io.Writer, d lifecycle.Declared, archiveLocation string, encode bool) error {
	script, err := lifecycle.Render(d, lifecycle.Params{ArchiveLocation: archiveLocation}, lifecycle.DefaultLayout())
	if err != nil {
		return err
	}
	if encode {
		script = lifecycle.Encode(script) + "\n"
	}
	_, err = io.WriteString(w, script)
	return err
}
