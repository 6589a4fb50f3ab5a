package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/ag-research/ag-vpc/lifecycle"
	"github.com/ag-research/ag-vpc/tui"
	"github.com/ag-research/ag-vpc/tui/assets"
)

// Colors matching the TUI palette.
var (
	setupCyan  = lipgloss.Color("#22d3ee")
	setupGreen = lipgloss.Color("#4ade80")
	setupGray  = lipgloss.Color("#6b7280")
	setupDim   = lipgloss.Color("#374151")
	setupRed   = lipgloss.Color("#f87171")
)

// Regions where SageMaker notebook instances are offered.
var regionOptions = []string{
	"us-east-1", "us-east-2", "us-west-1", "us-west-2",
	"ca-central-1",
	"eu-west-1", "eu-west-2", "eu-west-3", "eu-central-1", "eu-north-1",
	"ap-northeast-1", "ap-northeast-2", "ap-southeast-1", "ap-southeast-2", "ap-south-1",
	"sa-east-1",
}

// Notebook instance types, smallest first.
var instanceTypeOptions = []string{
	// Burstable
	"ml.t3.medium",  // 2 vCPU, 4 GiB
	"ml.t3.large",   // 2 vCPU, 8 GiB
	"ml.t3.xlarge",  // 4 vCPU, 16 GiB
	"ml.t3.2xlarge", // 8 vCPU, 32 GiB
	// General purpose
	"ml.m5.xlarge",  // 4 vCPU, 16 GiB
	"ml.m5.2xlarge", // 8 vCPU, 32 GiB
	"ml.m5.4xlarge", // 16 vCPU, 64 GiB
	// Compute optimized
	"ml.c5.xlarge",  // 4 vCPU, 8 GiB
	"ml.c5.2xlarge", // 8 vCPU, 16 GiB
	// GPU
	"ml.g4dn.xlarge", // 1x T4
	"ml.g5.xlarge",   // 1x A10G
	"ml.p3.2xlarge",  // 1x V100
}

// sectionHeader prints a bold cyan label with a dim rule line.
func sectionHeader(label string) {
	styled := lipgloss.NewStyle().Bold(true).Foreground(setupCyan).Render(label)
	ruleLen := 40 - len(label) - 1
	if ruleLen < 4 {
		ruleLen = 4
	}
	rule := lipgloss.NewStyle().Foreground(setupDim).Render(strings.Repeat("\u2500", ruleLen))
	fmt.Printf("\n  \u2500\u2500 %s %s\n", styled, rule)
}

const archiveAttempts = 3

var errInputClosed = errors.New("input closed before setup finished")

var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// promptSelect shows an arrow-key list, or numbered input when stdin is not
// a terminal.
func promptSelect(label string, options []string, defaultIdx int) string {
	if !stdinIsTerminal() {
		return promptSelectFallback(label, options, defaultIdx)
	}
	choice, err := tui.Select(label, options, defaultIdx)
	if errors.Is(err, tui.ErrAborted) {
		os.Exit(1)
	}
	if err != nil {
		return promptSelectFallback(label, options, defaultIdx)
	}
	return choice
}

// promptSelectFallback reads a numbered choice from stdin.
func promptSelectFallback(label string, options []string, defaultIdx int) string {
	num := lipgloss.NewStyle().Foreground(setupCyan)
	dim := lipgloss.NewStyle().Foreground(setupDim)

	fmt.Printf("  %s:\n", label)
	for i, opt := range options {
		n := num.Render(fmt.Sprintf("%d)", i+1))
		if i == defaultIdx {
			fmt.Printf("    %s %s %s\n", n, opt, dim.Render("(default)"))
		} else {
			fmt.Printf("    %s %s\n", n, opt)
		}
	}

	fmt.Printf("  Choice [%s]: ", num.Render(strconv.Itoa(defaultIdx+1)))
	input, _ := readLine()
	if input == "" {
		return options[defaultIdx]
	}
	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > len(options) {
		return options[defaultIdx]
	}
	return options[idx-1]
}

// promptArchive asks for the bootstrap archive until it parses. It gives up
// when input runs out or after archiveAttempts invalid answers.
func promptArchive(current string) (string, error) {
	var err error
	for range archiveAttempts {
		if current != "" {
			fmt.Printf("  Bootstrap archive (s3://bucket/key) [%s]: ", current)
		} else {
			fmt.Print("  Bootstrap archive (s3://bucket/key): ")
		}
		input, readErr := readLine()
		if input == "" {
			input = current
		}
		if _, _, err = lifecycle.ParseArchiveLocation(input); err == nil {
			return input, nil
		}
		if readErr != nil {
			fmt.Println()
			return "", fmt.Errorf("%w: %v", errInputClosed, err)
		}
		fmt.Println(lipgloss.NewStyle().Foreground(setupRed).Render("  " + err.Error()))
	}
	return "", fmt.Errorf("no valid bootstrap archive after %d attempts: %w", archiveAttempts, err)
}

// findOption returns the index of val in options, or fallback if not found.
func findOption(options []string, val string, fallback int) int {
	for i, opt := range options {
		if opt == val {
			return i
		}
	}
	return fallback
}

// runInteractiveSetup runs the interactive setup with styled output.
// firstRun=true shows "First-time setup"; false shows "Reconfigure".
func runInteractiveSetup(firstRun bool) error {
	logo := lipgloss.NewStyle().Foreground(setupCyan).Render(assets.BootLogo)
	fmt.Println(logo)
	fmt.Println()

	subtitle := "Reconfigure"
	if firstRun {
		subtitle = "First-time setup"
	}
	fmt.Println(lipgloss.NewStyle().Bold(true).Foreground(setupGreen).Render("     AG notebook stack"))
	fmt.Println(lipgloss.NewStyle().Foreground(setupGray).Render("     " + subtitle))
	fmt.Println(lipgloss.NewStyle().Foreground(setupDim).Render("     Press Enter to accept defaults"))

	// ── Account ──────────────────────────
	sectionHeader("Account")

	if cfg.Region != "" {
		msg := fmt.Sprintf("  \u2713 Detected region from AWS config: %s", cfg.Region)
		fmt.Println(lipgloss.NewStyle().Foreground(setupGreen).Render(msg))
	}
	cfg.Region = promptSelect("Region", regionOptions, findOption(regionOptions, orDefault(cfg.Region, "us-west-2"), 0))
	cfg.StackName = promptString("Stack name", orDefault(cfg.StackName, "AgVpcStack-"+regionSuffix(cfg.Region)))

	// ── Networking ───────────────────────
	sectionHeader("Networking")

	cfg.VPCName = promptString("VPC name", orDefault(cfg.VPCName, "ag-vpc"))
	cfg.VPCCIDR = promptString("VPC CIDR", orDefault(cfg.VPCCIDR, "10.0.0.0/16"))
	cfg.MaxAZs = promptInt("Max availability zones", orDefaultInt(cfg.MaxAZs, 3))

	// ── Notebook ─────────────────────────
	sectionHeader("Notebook")

	cfg.NotebookName = promptString("Notebook name", orDefault(cfg.NotebookName, "ag-notebook"))
	cfg.InstanceType = promptSelect("Instance type", instanceTypeOptions,
		findOption(instanceTypeOptions, orDefault(cfg.InstanceType, "ml.t3.medium"), 0))
	cfg.VolumeSizeGB = promptInt("Volume size (GB)", orDefaultInt(cfg.VolumeSizeGB, 20))

	archive, err := promptArchive(cfg.ArchiveLocation)
	if err != nil {
		return err
	}
	cfg.ArchiveLocation = archive

	// ── Security ─────────────────────────
	sectionHeader("Security")

	cfg.KeyAlias = promptString("KMS key alias", orDefault(cfg.KeyAlias, "alias/agkey"))
	cfg.KeyPendingWindowDays = promptInt("Key deletion window (days)", orDefaultInt(cfg.KeyPendingWindowDays, 7))
	retainDefault := 1
	if cfg.RetainKey {
		retainDefault = 0
	}
	cfg.RetainKey = promptSelect("Keep key when the stack is destroyed", []string{"Yes", "No"}, retainDefault) == "Yes"

	fmt.Println()
	return nil
}

func orDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func orDefaultInt(val, def int) int {
	if val != 0 {
		return val
	}
	return def
}
