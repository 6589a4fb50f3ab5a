package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/apitype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-research/ag-vpc/infra"
	"github.com/ag-research/ag-vpc/lifecycle"
)

func testOutputs() *infra.StackOutputs {
	return &infra.StackOutputs{
		KeyARN:          "arn:aws:kms:us-west-2:123456789012:key/abc",
		SubnetIDs:       []string{"subnet-a", "subnet-b"},
		SecurityGroupID: "sg-1",
		VPCID:           "vpc-1",
		RoleARN:         "arn:aws:iam::123456789012:role/ag-notebook-role",
		NotebookName:    "ag-notebook",
	}
}

func TestPrintOutputs(t *testing.T) {
	var buf bytes.Buffer
	printOutputs(&buf, testOutputs())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "AGKmsKeyId=arn:aws:kms:us-west-2:123456789012:key/abc", lines[0])
	assert.Equal(t, "AGSubnets=subnet-a,subnet-b", lines[1])
	assert.Equal(t, "AGSecurityGroupId=sg-1", lines[2])
}

func TestChangeSummary(t *testing.T) {
	s := changeSummary(map[apitype.OpType]int{apitype.OpCreate: 3, apitype.OpSame: 2})
	assert.Equal(t, map[string]int{"create": 3, "same": 2}, s)
	assert.True(t, hasChanges(s))
	assert.False(t, hasChanges(map[string]int{"same": 12}))
	assert.True(t, hasChanges(map[string]int{"replace": 1}))
}

func TestWriteScript(t *testing.T) {
	var buf bytes.Buffer
	d := placeholderDeclared("us-west-2")
	require.NoError(t, writeScript(&buf, d, "s3://ag-bootstrap/bundle.tar.gz", false))
	assert.Contains(t, buf.String(), "sg-PLACEHOLDER")
	assert.Contains(t, buf.String(), "arn:aws:kms:us-west-2:000000000000:key/PLACEHOLDER")

	var enc bytes.Buffer
	require.NoError(t, writeScript(&enc, d, "s3://ag-bootstrap/bundle.tar.gz", true))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(enc.String()))
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(decoded))
}

func TestWriteScriptNeedsArchive(t *testing.T) {
	var buf bytes.Buffer
	err := writeScript(&buf, placeholderDeclared("us-west-2"), "", false)
	assert.ErrorIs(t, err, lifecycle.ErrMissingArchive)
	assert.Zero(t, buf.Len())
}

func TestRenderScriptBeforeDeploy(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	withConfig(t, validConfig())

	var buf bytes.Buffer
	require.NoError(t, runRenderScript(context.Background(), &buf, false))
	assert.Contains(t, buf.String(), "sg-PLACEHOLDER")
	assert.NoDirExists(t, filepath.Join(home, ".config", "ag-vpc"))
}
