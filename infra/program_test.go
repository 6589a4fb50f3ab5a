package infra

import (
	"encoding/base64"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-research/ag-vpc/lifecycle"
)

const testArchive = "s3://ag-artifacts/notebooks/bootstrap.tar.gz"

func testConfig() *StackConfig {
	return &StackConfig{
		Region:               "us-west-2",
		StackName:            "AgVpcStack-west",
		KeyAlias:             "alias/agkey",
		KeyDescription:       "KMS key for encrypting the objects in an S3 bucket",
		KeyPendingWindowDays: 7,
		VPCName:              "ag-vpc",
		VPCCIDR:              "10.0.0.0/16",
		MaxAZs:               3,
		SubnetCIDRMask:       24,
		SecurityGroupName:    "ag-notebook-sg",
		RoleName:             "ag-notebook-role",
		NotebookName:         "ag-notebook",
		LifecycleConfigName:  "ag-notebook-on-create",
		InstanceType:         "ml.t3.medium",
		VolumeSizeGB:         20,
		RootAccess:           true,
		PlatformIdentifier:   "notebook-al2-v2",
	}
}

func setArchiveConfig(t *testing.T, location string) {
	t.Helper()
	t.Setenv("PULUMI_CONFIG", `{"ag-vpc:archiveLocation":"`+location+`"}`)
}

// runStack declares the stack against mocks and resolves its exports.
func runStack(t *testing.T, m *mocks, cfg *StackConfig) (map[string]string, *stackResources, error) {
	t.Helper()
	exports := map[string]string{}
	var res *stackResources

	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		var err error
		res, err = declareStack(ctx, cfg)
		if err != nil {
			return err
		}

		outs := stackExports(res)
		names := make([]string, 0, len(outs))
		for name := range outs {
			names = append(names, name)
		}
		sort.Strings(names)
		values := make([]interface{}, len(names))
		for i, name := range names {
			values[i] = outs[name]
		}

		var wg sync.WaitGroup
		wg.Add(1)
		pulumi.All(values...).ApplyT(func(all []interface{}) error {
			defer wg.Done()
			for i, name := range names {
				exports[name] = all[i].(string)
			}
			return nil
		})
		wg.Wait()
		return nil
	}, pulumi.WithMocks(projectName, "test", m))

	return exports, res, err
}

func TestStackSubnetsPerZone(t *testing.T) {
	setArchiveConfig(t, testArchive)

	tests := []struct {
		name   string
		zones  []string
		maxAZs int
		want   int
	}{
		{name: "three zones", zones: []string{"us-west-2a", "us-west-2b", "us-west-2c", "us-west-2d"}, maxAZs: 3, want: 3},
		{name: "two zones available", zones: []string{"us-west-2a", "us-west-2b"}, maxAZs: 3, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks(tt.zones...)
			cfg := testConfig()
			cfg.MaxAZs = tt.maxAZs
			_, _, err := runStack(t, m, cfg)
			require.NoError(t, err)

			var private, public int
			for _, s := range m.byType("aws:ec2/subnet:Subnet") {
				if s.Inputs["mapPublicIpOnLaunch"].IsBool() && s.Inputs["mapPublicIpOnLaunch"].BoolValue() {
					public++
				} else {
					private++
				}
			}
			assert.Equal(t, tt.want, private)
			assert.Equal(t, tt.want, public)
			assert.Len(t, m.byType("aws:ec2/natGateway:NatGateway"), tt.want)
			assert.Len(t, m.byType("aws:ec2/vpcEndpoint:VpcEndpoint"), 1)
		})
	}
}

func TestStackOutputsMatchResources(t *testing.T) {
	setArchiveConfig(t, testArchive)
	m := newMocks("us-west-2a", "us-west-2b", "us-west-2c")

	exports, _, err := runStack(t, m, testConfig())
	require.NoError(t, err)

	keys := m.byType("aws:kms/key:Key")
	require.Len(t, keys, 1)
	assert.Equal(t, "arn:aws:kms:us-west-2:"+testAccount+":key/"+keys[0].ID, exports[OutputKeyARN])

	sgs := m.byType("aws:ec2/securityGroup:SecurityGroup")
	require.Len(t, sgs, 1)
	assert.Equal(t, sgs[0].ID, exports[OutputSecurityGroupID])

	assert.Equal(t, "subnet-ag-private-1-1,subnet-ag-private-1-2,subnet-ag-private-1-3", exports[OutputSubnets])
	assert.Equal(t, "vpc-vpc", exports[OutputVPCID])
	assert.Equal(t, "arn:aws:iam::"+testAccount+":role/ag-notebook-role", exports[OutputRoleARN])
	assert.Equal(t, "ag-notebook", exports[OutputNotebookName])
}

func TestStackKey(t *testing.T) {
	setArchiveConfig(t, testArchive)

	tests := []struct {
		name   string
		retain bool
	}{
		{name: "destroyed with stack", retain: false},
		{name: "retained", retain: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks("us-west-2a")
			cfg := testConfig()
			cfg.RetainKey = tt.retain
			_, _, err := runStack(t, m, cfg)
			require.NoError(t, err)

			key, ok := m.byName("ag-kms-key")
			require.True(t, ok)
			assert.Equal(t, float64(7), key.Inputs["deletionWindowInDays"].NumberValue())
			assert.False(t, key.Inputs["enableKeyRotation"].BoolValue())
			assert.Equal(t, tt.retain, key.Retain)

			alias, ok := m.byName("ag-kms-alias")
			require.True(t, ok)
			assert.Equal(t, "alias/agkey", alias.Inputs["name"].StringValue())
			assert.Equal(t, key.ID, alias.Inputs["targetKeyId"].StringValue())
			assert.False(t, alias.Retain)
		})
	}
}

func TestStackPolicyScopedToKey(t *testing.T) {
	setArchiveConfig(t, testArchive)
	m := newMocks("us-west-2a")

	_, _, err := runStack(t, m, testConfig())
	require.NoError(t, err)

	key, ok := m.byName("ag-kms-key")
	require.True(t, ok)
	policy, ok := m.byName("notebook-policy")
	require.True(t, ok)

	doc := policy.Inputs["policy"].StringValue()
	assert.Contains(t, doc, `"Resource":["arn:aws:kms:us-west-2:`+testAccount+`:key/`+key.ID+`"]`)
	assert.Equal(t, 1, strings.Count(doc, "arn:aws:kms:"))
}

func TestStackLifecycleScript(t *testing.T) {
	setArchiveConfig(t, testArchive)
	m := newMocks("us-west-2a", "us-west-2b")

	exports, _, err := runStack(t, m, testConfig())
	require.NoError(t, err)

	lc, ok := m.byName("notebook-lifecycle")
	require.True(t, ok)
	raw, err := base64.StdEncoding.DecodeString(lc.Inputs["onCreate"].StringValue())
	require.NoError(t, err)
	script := string(raw)

	assert.Contains(t, script, "aws s3 cp "+testArchive+" ")
	assert.Contains(t, script, "SECURITY_GROUP_ID="+exports[OutputSecurityGroupID]+"\n")
	assert.Contains(t, script, "SUBNET_IDS="+exports[OutputSubnets]+"\n")
	assert.Contains(t, script, "KMS_KEY_ARN="+exports[OutputKeyARN]+"\n")
}

func TestStackNotebook(t *testing.T) {
	setArchiveConfig(t, testArchive)
	m := newMocks("us-west-2a", "us-west-2b")

	_, _, err := runStack(t, m, testConfig())
	require.NoError(t, err)

	nb, ok := m.byName("notebook")
	require.True(t, ok)
	key, _ := m.byName("ag-kms-key")

	assert.Equal(t, "ml.t3.medium", nb.Inputs["instanceType"].StringValue())
	assert.Equal(t, float64(20), nb.Inputs["volumeSize"].NumberValue())
	assert.Equal(t, "Disabled", nb.Inputs["directInternetAccess"].StringValue())
	assert.Equal(t, key.ID, nb.Inputs["kmsKeyId"].StringValue())
	assert.Equal(t, "subnet-ag-private-1-1", nb.Inputs["subnetId"].StringValue())
	assert.Equal(t, "ag-notebook-on-create", nb.Inputs["lifecycleConfigName"].StringValue())

	// The key cannot be deleted before the notebook that uses it.
	assert.True(t, nb.dependsOn("ag-kms-key"))
	assert.True(t, nb.dependsOn("notebook-policy"))
	assert.True(t, nb.dependsOn("notebook-lifecycle"))
}

func TestStackRequiresArchiveLocation(t *testing.T) {
	setArchiveConfig(t, "https://example.com/archive.tar.gz")
	m := newMocks("us-west-2a")

	_, _, err := runStack(t, m, testConfig())
	assert.Error(t, err)
	assert.Empty(t, m.byType("aws:sagemaker/notebookInstance:NotebookInstance"))
}

func TestStackMissingArchiveLocation(t *testing.T) {
	t.Setenv("PULUMI_CONFIG", `{}`)
	m := newMocks("us-west-2a")

	_, _, err := runStack(t, m, testConfig())
	assert.ErrorContains(t, err, lifecycle.ErrMissingArchive.Error())
}
