package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withConfig swaps the global config for the duration of a test.
func withConfig(t *testing.T, c Config) {
	t.Helper()
	saved := cfg
	cfg = c
	t.Cleanup(func() { cfg = saved })
}

func validConfig() Config {
	root := true
	return Config{
		Region:               "us-west-2",
		StackName:            "AgVpcStack-west",
		VPCName:              "ag-vpc",
		VPCCIDR:              "10.0.0.0/16",
		MaxAZs:               3,
		SubnetCIDRMask:       24,
		KeyAlias:             "alias/agkey",
		KeyPendingWindowDays: 7,
		InstanceType:         "ml.t3.medium",
		VolumeSizeGB:         20,
		RootAccess:           &root,
		NotebookName:         "ag-notebook",
		ArchiveLocation:      "s3://ag-bootstrap/bundle.tar.gz",
	}
}

func TestApplyDefaults(t *testing.T) {
	withConfig(t, Config{Region: "eu-central-1"})
	applyDefaults()

	assert.Equal(t, "AgVpcStack-central", cfg.StackName)
	assert.Equal(t, "10.0.0.0/16", cfg.VPCCIDR)
	assert.Equal(t, 3, cfg.MaxAZs)
	assert.Equal(t, 24, cfg.SubnetCIDRMask)
	assert.Equal(t, "alias/agkey", cfg.KeyAlias)
	assert.Equal(t, 7, cfg.KeyPendingWindowDays)
	assert.Equal(t, "ml.t3.medium", cfg.InstanceType)
	assert.Equal(t, 20, cfg.VolumeSizeGB)
	require.NotNil(t, cfg.RootAccess)
	assert.True(t, *cfg.RootAccess)
	assert.False(t, cfg.DirectInternetAccess)
}

func TestApplyDefaultsKeepsValues(t *testing.T) {
	disabled := false
	withConfig(t, Config{Region: "us-east-1", MaxAZs: 2, RootAccess: &disabled, NotebookName: "nb"})
	applyDefaults()

	assert.Equal(t, 2, cfg.MaxAZs)
	assert.False(t, *cfg.RootAccess)
	assert.Equal(t, "nb", cfg.NotebookName)
}

func TestRegionSuffix(t *testing.T) {
	assert.Equal(t, "west", regionSuffix("us-west-2"))
	assert.Equal(t, "northeast", regionSuffix("ap-northeast-1"))
	assert.Equal(t, "local", regionSuffix("local"))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"no region", func(c *Config) { c.Region = "" }, errNoRegion},
		{"bad cidr", func(c *Config) { c.VPCCIDR = "10.0.0.0" }, errBadCIDR},
		{"host bits", func(c *Config) { c.VPCCIDR = "10.0.1.0/16" }, errBadCIDR},
		{"short window", func(c *Config) { c.KeyPendingWindowDays = 6 }, errBadWindow},
		{"long window", func(c *Config) { c.KeyPendingWindowDays = 31 }, errBadWindow},
		{"mask too wide", func(c *Config) { c.SubnetCIDRMask = 8 }, errBadMask},
		{"no zones", func(c *Config) { c.MaxAZs = 0 }, errBadAZs},
		{"negative zones", func(c *Config) { c.MaxAZs = -1 }, errBadAZs},
		{"tiny volume", func(c *Config) { c.VolumeSizeGB = 1 }, errBadVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := validateConfig(&c)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateConfigArchive(t *testing.T) {
	c := validConfig()
	c.ArchiveLocation = "https://example.com/bundle.tar.gz"
	assert.Error(t, validateConfig(&c))

	c.ArchiveLocation = ""
	assert.NoError(t, validateConfig(&c), "archive is only required by up")
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stack.yaml")
	withConfig(t, validConfig())
	cfg.RetainKey = true
	require.NoError(t, saveConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg = Config{}
	require.NoError(t, loadConfig(path))
	assert.Equal(t, "s3://ag-bootstrap/bundle.tar.gz", cfg.ArchiveLocation)
	assert.True(t, cfg.RetainKey)
	assert.Equal(t, "AgVpcStack-west", cfg.StackName)
}

func TestLoadConfigMissing(t *testing.T) {
	withConfig(t, Config{})
	err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "ag-vpc configure")
	assert.False(t, loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region: us-west-2\nkey_pending_window_days: 3\n"), 0600))
	withConfig(t, Config{})
	assert.ErrorIs(t, loadConfig(path), errBadWindow)
}

func TestNewStackConfig(t *testing.T) {
	withConfig(t, validConfig())
	sc := newStackConfig()

	assert.Equal(t, "ag-notebook-sg", sc.SecurityGroupName)
	assert.Equal(t, "ag-notebook-role", sc.RoleName)
	assert.Equal(t, "ag-notebook-on-create", sc.LifecycleConfigName)
	assert.Equal(t, "us-west-2", sc.Region)
	assert.Equal(t, 3, sc.MaxAZs)
	assert.True(t, sc.RootAccess)
	assert.False(t, sc.DirectInternetAccess)
	assert.Equal(t, "s3://ag-bootstrap/bundle.tar.gz", sc.ArchiveLocation)
}
