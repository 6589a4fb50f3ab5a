package infra

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
)

// StackOutputs are the values exported by the stack after provisioning.
type StackOutputs struct {
	KeyARN          string
	SubnetIDs       []string
	SecurityGroupID string
	VPCID           string
	RoleARN         string
	NotebookName    string
}

// ParseOutputs reads the stack exports. Missing required outputs are an
// error; the stack has likely never been deployed.
func ParseOutputs(out auto.OutputMap) (*StackOutputs, error) {
	get := func(name string, required bool) (string, error) {
		v, ok := out[name]
		if !ok || v.Value == nil {
			if required {
				return "", fmt.Errorf("stack output %s not found", name)
			}
			return "", nil
		}
		s, ok := v.Value.(string)
		if !ok {
			return "", fmt.Errorf("stack output %s: unexpected type %T", name, v.Value)
		}
		return s, nil
	}

	var (
		o   StackOutputs
		err error
	)
	if o.KeyARN, err = get(OutputKeyARN, true); err != nil {
		return nil, err
	}
	subnets, err := get(OutputSubnets, true)
	if err != nil {
		return nil, err
	}
	if subnets != "" {
		o.SubnetIDs = strings.Split(subnets, ",")
	}
	if o.SecurityGroupID, err = get(OutputSecurityGroupID, true); err != nil {
		return nil, err
	}
	if o.VPCID, err = get(OutputVPCID, false); err != nil {
		return nil, err
	}
	if o.RoleARN, err = get(OutputRoleARN, false); err != nil {
		return nil, err
	}
	if o.NotebookName, err = get(OutputNotebookName, false); err != nil {
		return nil, err
	}
	return &o, nil
}
