package infra

import (
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// provisionAccess declares the notebook's security group: no ingress, all
// egress.
func provisionAccess(ctx *pulumi.Context, cfg *StackConfig, net *NetworkResult, opts ...pulumi.ResourceOption) (*AccessResult, error) {
	sg, err := ec2.NewSecurityGroup(ctx, "notebook-sg", &ec2.SecurityGroupArgs{
		Name:        pulumi.String(cfg.SecurityGroupName),
		Description: pulumi.String("ag-vpc notebook instance"),
		VpcId:       net.VPC.ID(),
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Protocol:   pulumi.String("-1"),
				FromPort:   pulumi.Int(0),
				ToPort:     pulumi.Int(0),
				CidrBlocks: pulumi.StringArray{pulumi.String("0.0.0.0/0")},
			},
		},
		Tags: stackTags(cfg, cfg.SecurityGroupName),
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &AccessResult{SecurityGroup: sg}, nil
}
