package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/EvilSuperstars/go-cidrman"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"gopkg.in/yaml.v3"

	"github.com/ag-research/ag-vpc/infra"
	"github.com/ag-research/ag-vpc/lifecycle"
)

// Config holds the stack configuration loaded from stack.yaml.
type Config struct {
	Region               string `yaml:"region"`
	StackName            string `yaml:"stack_name"`
	VPCName              string `yaml:"vpc_name"`
	VPCCIDR              string `yaml:"vpc_cidr"`
	MaxAZs               int    `yaml:"max_azs"`
	SubnetCIDRMask       int    `yaml:"subnet_cidr_mask"`
	KeyAlias             string `yaml:"key_alias"`
	KeyPendingWindowDays int    `yaml:"key_pending_window_days"`
	KeyRotation          bool   `yaml:"key_rotation"`
	RetainKey            bool   `yaml:"retain_key"`
	InstanceType         string `yaml:"instance_type"`
	VolumeSizeGB         int    `yaml:"volume_size_gb"`
	DirectInternetAccess bool   `yaml:"direct_internet_access"`
	RootAccess           *bool  `yaml:"root_access,omitempty"`
	NotebookName         string `yaml:"notebook_name"`
	ArchiveLocation      string `yaml:"archive_location"`
}

var cfg Config

var (
	errNoRegion  = errors.New("region is required")
	errBadCIDR   = errors.New("vpc_cidr is not a valid CIDR block")
	errBadWindow = errors.New("key_pending_window_days must be between 7 and 30")
	errBadMask   = errors.New("subnet_cidr_mask must be between 16 and 28")
	errBadAZs    = errors.New("max_azs must be at least 1")
	errBadVolume = errors.New("volume_size_gb must be between 5 and 16384")
)

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ag-vpc")
}

func defaultConfigPath() string {
	return filepath.Join(configDir(), "stack.yaml")
}

func configPathOrDefault(path string) string {
	if path != "" {
		return path
	}
	return defaultConfigPath()
}

// loadConfig loads and validates config from file. Fails if file is missing.
func loadConfig(path string) error {
	path = configPathOrDefault(path)

	data, err := os.ReadFile(path) //nolint:gosec // path from known config dir
	if err != nil {
		return fmt.Errorf("config not found: %s\nRun 'ag-vpc configure' first", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults()
	return validateConfig(&cfg)
}

// loadConfigFile loads config from file if it exists. Returns true if loaded.
func loadConfigFile(path string) bool {
	data, err := os.ReadFile(configPathOrDefault(path)) //nolint:gosec // path from known config dir
	if err != nil {
		return false
	}
	return yaml.Unmarshal(data, &cfg) == nil
}

// applyDefaults fills in default values for empty config fields.
func applyDefaults() {
	if cfg.Region == "" {
		cfg.Region = inferRegion()
	}
	if cfg.Region == "" {
		cfg.Region = "us-west-2"
	}
	if cfg.StackName == "" {
		cfg.StackName = "AgVpcStack-" + regionSuffix(cfg.Region)
	}
	if cfg.VPCName == "" {
		cfg.VPCName = "ag-vpc"
	}
	if cfg.VPCCIDR == "" {
		cfg.VPCCIDR = "10.0.0.0/16"
	}
	if cfg.MaxAZs == 0 {
		cfg.MaxAZs = 3
	}
	if cfg.SubnetCIDRMask == 0 {
		cfg.SubnetCIDRMask = 24
	}
	if cfg.KeyAlias == "" {
		cfg.KeyAlias = "alias/agkey"
	}
	if cfg.KeyPendingWindowDays == 0 {
		cfg.KeyPendingWindowDays = 7
	}
	if cfg.InstanceType == "" {
		cfg.InstanceType = "ml.t3.medium"
	}
	if cfg.VolumeSizeGB == 0 {
		cfg.VolumeSizeGB = 20
	}
	if cfg.RootAccess == nil {
		enabled := true
		cfg.RootAccess = &enabled
	}
	if cfg.NotebookName == "" {
		cfg.NotebookName = "ag-notebook"
	}
}

// regionSuffix turns "us-west-2" into "west", the suffix used in stack names.
func regionSuffix(region string) string {
	parts := strings.Split(region, "-")
	if len(parts) == 3 {
		return parts[1]
	}
	return region
}

func validateConfig(c *Config) error {
	if c.Region == "" {
		return errNoRegion
	}
	merged, err := cidrman.MergeCIDRs([]string{c.VPCCIDR})
	if err != nil || len(merged) != 1 {
		return fmt.Errorf("%w: %s", errBadCIDR, c.VPCCIDR)
	}
	if merged[0] != c.VPCCIDR {
		return fmt.Errorf("%w: %s has host bits set, use %s", errBadCIDR, c.VPCCIDR, merged[0])
	}
	if c.MaxAZs < 1 {
		return fmt.Errorf("%w: %d", errBadAZs, c.MaxAZs)
	}
	if c.KeyPendingWindowDays < 7 || c.KeyPendingWindowDays > 30 {
		return fmt.Errorf("%w: %d", errBadWindow, c.KeyPendingWindowDays)
	}
	if c.SubnetCIDRMask < 16 || c.SubnetCIDRMask > 28 {
		return fmt.Errorf("%w: %d", errBadMask, c.SubnetCIDRMask)
	}
	if c.VolumeSizeGB < 5 || c.VolumeSizeGB > 16384 {
		return fmt.Errorf("%w: %d", errBadVolume, c.VolumeSizeGB)
	}
	if c.ArchiveLocation != "" {
		if _, _, err := lifecycle.ParseArchiveLocation(c.ArchiveLocation); err != nil {
			return err
		}
	}
	return nil
}

// inferRegion reads the region from the AWS environment and shared config.
func inferRegion() string {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return ""
	}
	return awsCfg.Region
}

// newStackConfig maps the file config onto the declared stack.
func newStackConfig() *infra.StackConfig {
	return &infra.StackConfig{
		Region:               cfg.Region,
		StackName:            cfg.StackName,
		KeyAlias:             cfg.KeyAlias,
		KeyDescription:       "KMS key for encrypting the objects in an S3 bucket",
		KeyPendingWindowDays: cfg.KeyPendingWindowDays,
		KeyRotation:          cfg.KeyRotation,
		RetainKey:            cfg.RetainKey,
		VPCName:              cfg.VPCName,
		VPCCIDR:              cfg.VPCCIDR,
		MaxAZs:               cfg.MaxAZs,
		SubnetCIDRMask:       cfg.SubnetCIDRMask,
		SecurityGroupName:    cfg.NotebookName + "-sg",
		RoleName:             cfg.NotebookName + "-role",
		NotebookName:         cfg.NotebookName,
		LifecycleConfigName:  cfg.NotebookName + "-on-create",
		InstanceType:         cfg.InstanceType,
		VolumeSizeGB:         cfg.VolumeSizeGB,
		DirectInternetAccess: cfg.DirectInternetAccess,
		RootAccess:           cfg.RootAccess == nil || *cfg.RootAccess,
		PlatformIdentifier:   "notebook-al2-v2",
		ArchiveLocation:      cfg.ArchiveLocation,
	}
}

// saveConfig writes the current config to the config file.
func saveConfig(path string) error {
	path = configPathOrDefault(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// stdin is the one buffered reader every prompt reads from.
var stdin = bufio.NewReader(os.Stdin)

// readLine reads one trimmed line. It fails only once input is exhausted.
func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

// promptString prompts the user for a string value with a default.
func promptString(label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	input, _ := readLine()
	if input == "" {
		return defaultVal
	}
	return input
}

// promptInt prompts the user for an integer value with a default.
func promptInt(label string, defaultVal int) int {
	fmt.Printf("  %s [%d]: ", label, defaultVal)
	input, _ := readLine()
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil {
		return defaultVal
	}
	return val
}

// StateDir returns the local Pulumi state directory path.
func StateDir() (string, error) {
	dir := configDir()
	if dir == "" {
		return "", errors.New("cannot determine home directory")
	}
	return filepath.Join(dir, "state"), nil
}
