package infra

import (
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputs(t *testing.T) {
	out := auto.OutputMap{
		OutputKeyARN:          {Value: "arn:aws:kms:us-west-2:123456789012:key/abc"},
		OutputSubnets:         {Value: "subnet-a,subnet-b,subnet-c"},
		OutputSecurityGroupID: {Value: "sg-123"},
		OutputNotebookName:    {Value: "ag-notebook"},
	}

	o, err := ParseOutputs(out)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:kms:us-west-2:123456789012:key/abc", o.KeyARN)
	assert.Equal(t, []string{"subnet-a", "subnet-b", "subnet-c"}, o.SubnetIDs)
	assert.Equal(t, "sg-123", o.SecurityGroupID)
	assert.Equal(t, "ag-notebook", o.NotebookName)
	assert.Empty(t, o.VPCID)
}

func TestParseOutputsMissing(t *testing.T) {
	_, err := ParseOutputs(auto.OutputMap{})
	assert.ErrorContains(t, err, OutputKeyARN)

	_, err = ParseOutputs(auto.OutputMap{
		OutputKeyARN:          {Value: "arn"},
		OutputSubnets:         {Value: 3.0},
		OutputSecurityGroupID: {Value: "sg-123"},
	})
	assert.ErrorContains(t, err, "unexpected type")
}
