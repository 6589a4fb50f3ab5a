package infra

import (
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/sagemaker"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// StackConfig holds all parameters needed to declare the stack.
type StackConfig struct {
	Region    string
	StackName string

	// Key
	KeyAlias             string
	KeyDescription       string
	KeyPendingWindowDays int
	KeyRotation          bool
	RetainKey            bool

	// Network
	VPCName        string
	VPCCIDR        string
	MaxAZs         int
	SubnetCIDRMask int

	// Access control + identity
	SecurityGroupName string
	RoleName          string

	// Notebook
	NotebookName         string
	LifecycleConfigName  string
	InstanceType         string
	VolumeSizeGB         int
	DirectInternetAccess bool
	RootAccess           bool
	PlatformIdentifier   string

	// ArchiveLocation seeds the ag-vpc:archiveLocation stack config. The
	// program itself only reads the stack config value.
	ArchiveLocation string
}

// KeyResult holds the declared encryption key.
type KeyResult struct {
	Key   *kms.Key
	Alias *kms.Alias
}

// NetworkResult holds the declared network resources.
type NetworkResult struct {
	VPC            *ec2.Vpc
	PrivateSubnets []*ec2.Subnet
	PublicSubnets  []*ec2.Subnet
	RouteTables    []*ec2.RouteTable
	NATGateways    []*ec2.NatGateway
	S3Endpoint     *ec2.VpcEndpoint
	Plans          []SubnetPlan
}

// PrivateSubnetIDs returns the private subnet ids in plan order.
func (n *NetworkResult) PrivateSubnetIDs() pulumi.StringArrayOutput {
	ids := make(pulumi.StringArray, 0, len(n.PrivateSubnets))
	for _, s := range n.PrivateSubnets {
		ids = append(ids, s.ID().ToStringOutput())
	}
	return ids.ToStringArrayOutput()
}

// AccessResult holds the network traffic filter.
type AccessResult struct {
	SecurityGroup *ec2.SecurityGroup
}

// IAMResult holds the notebook's execution identity.
type IAMResult struct {
	Role   *iam.Role
	Policy *iam.RolePolicy
}

// NotebookResult holds the bootstrap script and the notebook instance.
type NotebookResult struct {
	Lifecycle *sagemaker.NotebookInstanceLifecycleConfiguration
	Instance  *sagemaker.NotebookInstance
}
