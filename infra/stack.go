package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optimport"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optrefresh"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/pulumi/pulumi/sdk/v3/go/common/tokens"
	"github.com/pulumi/pulumi/sdk/v3/go/common/workspace"
	"github.com/sirupsen/logrus"
)

const projectName = "ag-vpc"

var log = logrus.WithField("component", "infra")

// ErrNoStack is returned by read-only operations when the stack has never
// been deployed from this state directory.
var ErrNoStack = errors.New("stack has not been deployed")

func workspaceOptions(stateDir string) []auto.LocalWorkspaceOption {
	project := workspace.Project{
		Name:    tokens.PackageName(projectName),
		Runtime: workspace.NewProjectRuntimeInfo("go", nil),
		Backend: &workspace.ProjectBackend{URL: "file://" + stateDir},
	}
	return []auto.LocalWorkspaceOption{
		auto.EnvVars(map[string]string{
			"PULUMI_CONFIG_PASSPHRASE": "", // no encryption for local state
		}),
		auto.Project(project),
	}
}

// selectStack opens an existing stack without writing to the state dir.
func selectStack(ctx context.Context, cfg *StackConfig, stateDir string) (auto.Stack, error) {
	if _, err := os.Stat(stateDir); errors.Is(err, fs.ErrNotExist) {
		return auto.Stack{}, fmt.Errorf("%w: %s", ErrNoStack, cfg.StackName)
	}
	s, err := auto.SelectStackInlineSource(ctx, cfg.StackName, projectName,
		DefineInfrastructure(cfg), workspaceOptions(stateDir)...)
	if auto.IsSelectStack404Error(err) {
		return auto.Stack{}, fmt.Errorf("%w: %s", ErrNoStack, cfg.StackName)
	}
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to select stack: %w", err)
	}
	return s, nil
}

func getOrCreateStack(ctx context.Context, cfg *StackConfig, stateDir string) (auto.Stack, error) {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return auto.Stack{}, fmt.Errorf("failed to create state dir: %w", err)
	}

	s, err := auto.UpsertStackInlineSource(ctx, cfg.StackName, projectName,
		DefineInfrastructure(cfg), workspaceOptions(stateDir)...)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to create/select stack: %w", err)
	}

	if err := s.SetConfig(ctx, "aws:region", auto.ConfigValue{Value: cfg.Region}); err != nil {
		return auto.Stack{}, fmt.Errorf("set aws:region: %w", err)
	}
	if cfg.ArchiveLocation != "" {
		if err := s.SetConfig(ctx, projectName+":"+archiveLocationKey, auto.ConfigValue{Value: cfg.ArchiveLocation}); err != nil {
			return auto.Stack{}, fmt.Errorf("set %s: %w", archiveLocationKey, err)
		}
	}

	return s, nil
}

// importAndRefresh adopts AWS resources that exist but are not in state, then
// refreshes. Used when the stack is empty.
func importAndRefresh(ctx context.Context, s auto.Stack, cfg *StackConfig, out io.Writer) {
	clients, err := NewLookupClients(ctx, cfg.Region)
	if err != nil {
		log.Warnf("skipping adoption: %v", err)
		return
	}
	existing := DetectExistingResources(ctx, cfg, clients)
	if len(existing) == 0 {
		log.Info("no existing resources found")
		return
	}

	log.Infof("importing %d existing resources...", len(existing))
	_, err = s.ImportResources(ctx,
		optimport.Resources(existing),
		optimport.Protect(false),
		optimport.GenerateCode(false),
		optimport.ProgressStreams(out),
		optimport.ErrorProgressStreams(out),
	)
	if err != nil {
		// Import failures are non-fatal: the following operation reconciles the rest.
		log.Warnf("import completed with warnings: %v", err)
	} else {
		log.Info("import complete")
	}

	log.Info("refreshing state after import...")
	if _, err := s.Refresh(ctx, optrefresh.ProgressStreams(out)); err != nil {
		log.Warnf("refresh warning: %v", err)
	}
}

// refreshOrImport refreshes a stack with resources, or adopts into an empty one.
func refreshOrImport(ctx context.Context, s auto.Stack, cfg *StackConfig, out io.Writer) {
	info, err := s.Info(ctx)
	if err == nil && info.ResourceCount != nil && *info.ResourceCount > 0 {
		log.Infof("refreshing state from cloud (%d resources)...", *info.ResourceCount)
		if _, err := s.Refresh(ctx, optrefresh.ProgressStreams(out)); err != nil {
			log.Warnf("refresh warning: %v", err)
		}
		return
	}
	log.Info("empty stack, checking for existing AWS resources...")
	importAndRefresh(ctx, s, cfg, out)
}

// Preview shows what would change without applying.
func Preview(ctx context.Context, cfg *StackConfig, stateDir string, out io.Writer) (auto.PreviewResult, error) {
	s, err := getOrCreateStack(ctx, cfg, stateDir)
	if err != nil {
		return auto.PreviewResult{}, err
	}

	refreshOrImport(ctx, s, cfg, out)

	log.Info("previewing changes...")
	result, err := s.Preview(ctx, optpreview.ProgressStreams(out))
	if err != nil {
		return auto.PreviewResult{}, fmt.Errorf("pulumi preview failed: %w", err)
	}

	log.Infof("preview: %d to create, %d to update, %d to delete, %d unchanged",
		result.ChangeSummary["create"],
		result.ChangeSummary["update"],
		result.ChangeSummary["delete"],
		result.ChangeSummary["same"])
	return result, nil
}

// Up provisions or reconciles the stack and returns its outputs.
func Up(ctx context.Context, cfg *StackConfig, stateDir string, out io.Writer) (*StackOutputs, error) {
	s, err := getOrCreateStack(ctx, cfg, stateDir)
	if err != nil {
		return nil, err
	}

	refreshOrImport(ctx, s, cfg, out)

	log.Info("running up...")
	result, err := s.Up(ctx, optup.ProgressStreams(out))
	if err != nil {
		return nil, fmt.Errorf("pulumi up failed: %w", err)
	}

	if result.Summary.ResourceChanges != nil {
		rc := *result.Summary.ResourceChanges
		log.Infof("up complete: %d created, %d updated, %d unchanged",
			rc["create"], rc["update"], rc["same"])
	} else {
		log.Info("up complete")
	}

	return ParseOutputs(result.Outputs)
}

// Down destroys the stack. The key is scheduled for deletion after its
// pending window unless it is retained.
func Down(ctx context.Context, cfg *StackConfig, stateDir string, out io.Writer) error {
	s, err := getOrCreateStack(ctx, cfg, stateDir)
	if err != nil {
		return err
	}

	refreshOrImport(ctx, s, cfg, out)

	log.Info("destroying infrastructure...")
	result, err := s.Destroy(ctx, optdestroy.ProgressStreams(out))
	if err != nil {
		return fmt.Errorf("pulumi destroy failed: %w", err)
	}

	if result.Summary.ResourceChanges != nil {
		rc := *result.Summary.ResourceChanges
		log.Infof("destroy complete: %d deleted", rc["delete"])
	} else {
		log.Info("destroy complete")
	}
	if cfg.RetainKey {
		log.Infof("kms key %s retained in the account", cfg.KeyAlias)
	} else {
		log.Infof("kms key %s pending deletion for %d days", cfg.KeyAlias, cfg.KeyPendingWindowDays)
	}

	// Drop local state for this stack only.
	stackFiles, _ := filepath.Glob(filepath.Join(stateDir, ".pulumi", "stacks", projectName, cfg.StackName+".json*"))
	for _, f := range stackFiles {
		_ = os.Remove(f)
	}
	return nil
}

// Outputs returns the exports of the deployed stack without changing it or
// the state dir. It returns ErrNoStack when there is nothing deployed.
func Outputs(ctx context.Context, cfg *StackConfig, stateDir string) (*StackOutputs, error) {
	s, err := selectStack(ctx, cfg, stateDir)
	if err != nil {
		return nil, err
	}
	out, err := s.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stack outputs: %w", err)
	}
	return ParseOutputs(out)
}
