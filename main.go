package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ag-research/ag-vpc/tui"
)

var version = "dev"

// Global flags.
var (
	configPath string
	logLevel   string
)

// upFlags override config values for a single up run.
type upFlags struct {
	region          string
	stackName       string
	archiveLocation string
	instanceType    string
	notebookName    string
	vpcCIDR         string
	maxAZs          int
	volumeSizeGB    int
	retainKey       bool
	yes             bool
	skipPreflight   bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tui.Version = version
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ag-vpc",
		Short:         "Deploy a KMS-encrypted SageMaker notebook in a private VPC",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to stack.yaml (default ~/.config/ag-vpc/stack.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(configureCmd())
	cmd.AddCommand(previewCmd())
	cmd.AddCommand(upCmd())
	cmd.AddCommand(downCmd())
	cmd.AddCommand(outputsCmd())
	cmd.AddCommand(notebookCmd("status", "Show the notebook instance status", runStatus))
	cmd.AddCommand(notebookCmd("start", "Start the notebook instance and wait until it is in service", runStart))
	cmd.AddCommand(notebookCmd("stop", "Stop the notebook instance", runStop))
	cmd.AddCommand(renderScriptCmd())
	return cmd
}

// ── configure ────────────────────────────────────────────────────

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Create or update the stack configuration interactively",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := runConfigure(); err != nil {
				return err
			}
			fmt.Printf("Configuration saved to %s\n", configPathOrDefault(configPath))
			return nil
		},
	}
}

func runConfigure() error {
	firstRun := !loadConfigFile(configPath)
	if cfg.Region == "" {
		cfg.Region = inferRegion()
	}

	if err := runInteractiveSetup(firstRun); err != nil {
		return err
	}
	applyDefaults()
	if err := validateConfig(&cfg); err != nil {
		return err
	}
	if err := saveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// ── stack commands ───────────────────────────────────────────────

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show what up would change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(configPath); err != nil {
				return err
			}
			return runPreview(cmd.Context())
		},
	}
}

func upCmd() *cobra.Command {
	var f upFlags
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Provision or reconcile the stack",
		Long: `Provision or reconcile the stack.

Creates the KMS key, the VPC with one private and one public subnet per
availability zone, the security group, the notebook role and policy, and the
notebook instance with its on-create lifecycle script. Existing resources
with matching names are adopted into the stack.

On first run, prompts for required values interactively.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := prepareUp(cmd, f); err != nil {
				return err
			}
			return runUp(cmd.Context(), f.yes, f.skipPreflight)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.region, "region", "", "AWS region (default: from AWS config, else us-west-2)")
	fl.StringVar(&f.stackName, "stack-name", "", "Stack name (default: AgVpcStack-<region>)")
	fl.StringVar(&f.archiveLocation, "archive-location", "", "S3 URI of the bootstrap archive (s3://bucket/key)")
	fl.StringVar(&f.instanceType, "instance-type", "", "Notebook instance type (default: ml.t3.medium)")
	fl.StringVar(&f.notebookName, "notebook-name", "", "Notebook instance name (default: ag-notebook)")
	fl.StringVar(&f.vpcCIDR, "vpc-cidr", "", "VPC CIDR block (default: 10.0.0.0/16)")
	fl.IntVar(&f.maxAZs, "max-azs", 0, "Maximum availability zones (default: 3)")
	fl.IntVar(&f.volumeSizeGB, "volume-size", 0, "Notebook volume size in GB (default: 20)")
	fl.BoolVar(&f.retainKey, "retain-key", false, "Keep the KMS key when the stack is destroyed")
	fl.BoolVarP(&f.yes, "yes", "y", false, "Skip the confirmation prompt and the TUI")
	fl.BoolVar(&f.skipPreflight, "skip-preflight", false, "Skip the credential and archive checks")
	return cmd
}

// prepareUp merges flags over the config file, prompting on first run, and
// saves the result.
func prepareUp(cmd *cobra.Command, f upFlags) error {
	existed := loadConfigFile(configPath)

	if f.region != "" {
		cfg.Region = f.region
	}
	if f.stackName != "" {
		cfg.StackName = f.stackName
	}
	if f.archiveLocation != "" {
		cfg.ArchiveLocation = f.archiveLocation
	}
	if f.instanceType != "" {
		cfg.InstanceType = f.instanceType
	}
	if f.notebookName != "" {
		cfg.NotebookName = f.notebookName
	}
	if f.vpcCIDR != "" {
		cfg.VPCCIDR = f.vpcCIDR
	}
	if f.maxAZs != 0 {
		cfg.MaxAZs = f.maxAZs
	}
	if f.volumeSizeGB != 0 {
		cfg.VolumeSizeGB = f.volumeSizeGB
	}
	if cmd.Flags().Changed("retain-key") {
		cfg.RetainKey = f.retainKey
	}

	if !existed && !f.yes && interactive() {
		if cfg.Region == "" {
			cfg.Region = inferRegion()
		}
		if err := runInteractiveSetup(true); err != nil {
			return err
		}
	}

	applyDefaults()
	if err := validateConfig(&cfg); err != nil {
		return err
	}
	if err := saveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	logrus.Debugf("config saved to %s", configPathOrDefault(configPath))
	return nil
}

func downCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Destroy the stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(configPath); err != nil {
				return err
			}
			return runDown(cmd.Context(), yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt and the TUI")
	return cmd
}

func outputsCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the stack outputs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(configPath); err != nil {
				return err
			}
			return runOutputs(cmd.Context(), plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print KEY=value lines")
	return cmd
}

func notebookCmd(use, short string, run func(context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(configPath); err != nil {
				return err
			}
			return run(cmd.Context())
		},
	}
}

func renderScriptCmd() *cobra.Command {
	var encode bool
	var archiveLocation string
	cmd := &cobra.Command{
		Use:   "render-script",
		Short: "Print the notebook on-create script",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(configPath); err != nil {
				return err
			}
			if archiveLocation != "" {
				cfg.ArchiveLocation = archiveLocation
			}
			return runRenderScript(cmd.Context(), cmd.OutOrStdout(), encode)
		},
	}
	cmd.Flags().BoolVar(&encode, "base64", false, "Print the script base64-encoded as stored in the lifecycle config")
	cmd.Flags().StringVar(&archiveLocation, "archive-location", "", "S3 URI of the bootstrap archive (default: from config)")
	return cmd
}
