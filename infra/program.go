package infra

import (
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Stack output names.
const (
	OutputKeyARN          = "AGKmsKeyId"
	OutputSubnets         = "AGSubnets"
	OutputSecurityGroupID = "AGSecurityGroupId"
	OutputVPCID           = "AGVpcId"
	OutputRoleARN         = "AGRoleArn"
	OutputNotebookName    = "AGNotebookName"
)

// stackResources is everything the program declares.
type stackResources struct {
	Key      *KeyResult
	Network  *NetworkResult
	Access   *AccessResult
	Identity *IAMResult
	Notebook *NotebookResult
}

// DefineInfrastructure is the Pulumi program that declares all resources.
func DefineInfrastructure(cfg *StackConfig) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		res, err := declareStack(ctx, cfg)
		if err != nil {
			return err
		}
		for name, v := range stackExports(res) {
			ctx.Export(name, v)
		}
		return nil
	}
}

func declareStack(ctx *pulumi.Context, cfg *StackConfig) (*stackResources, error) {
	// 1. Encryption key
	key, err := provisionKey(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Network (VPC, subnets per AZ, NAT, S3 endpoint)
	net, err := provisionNetwork(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 3. Security group
	access, err := provisionAccess(ctx, cfg, net)
	if err != nil {
		return nil, err
	}

	// 4. Notebook role + policy
	id, err := provisionIAM(ctx, cfg, key)
	if err != nil {
		return nil, err
	}

	// 5. Lifecycle config + notebook instance
	nb, err := provisionNotebook(ctx, cfg, net, access, key, id)
	if err != nil {
		return nil, err
	}

	return &stackResources{Key: key, Network: net, Access: access, Identity: id, Notebook: nb}, nil
}

func stackExports(res *stackResources) map[string]pulumi.Input {
	return map[string]pulumi.Input{
		OutputKeyARN:          res.Key.Key.Arn,
		OutputSubnets:         res.Network.PrivateSubnetIDs().ApplyT(joinIDs).(pulumi.StringOutput),
		OutputSecurityGroupID: res.Access.SecurityGroup.ID().ToStringOutput(),
		OutputVPCID:           res.Network.VPC.ID().ToStringOutput(),
		OutputRoleARN:         res.Identity.Role.Arn,
		OutputNotebookName:    res.Notebook.Instance.Name,
	}
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
