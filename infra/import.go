package infra

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optimport"
)

// The lookups below are the subset of each AWS client used for adoption.
type (
	EC2API interface {
		DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, opts ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
		DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
		DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
		DescribeInternetGateways(ctx context.Context, in *ec2.DescribeInternetGatewaysInput, opts ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error)
		DescribeRouteTables(ctx context.Context, in *ec2.DescribeRouteTablesInput, opts ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error)
		DescribeNatGateways(ctx context.Context, in *ec2.DescribeNatGatewaysInput, opts ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
		DescribeVpcEndpoints(ctx context.Context, in *ec2.DescribeVpcEndpointsInput, opts ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error)
	}
	KMSAPI interface {
		DescribeKey(ctx context.Context, in *kms.DescribeKeyInput, opts ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	}
	IAMAPI interface {
		GetRole(ctx context.Context, in *iam.GetRoleInput, opts ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	}
	SageMakerAPI interface {
		DescribeNotebookInstance(ctx context.Context, in *sagemaker.DescribeNotebookInstanceInput, opts ...func(*sagemaker.Options)) (*sagemaker.DescribeNotebookInstanceOutput, error)
		DescribeNotebookInstanceLifecycleConfig(ctx context.Context, in *sagemaker.DescribeNotebookInstanceLifecycleConfigInput, opts ...func(*sagemaker.Options)) (*sagemaker.DescribeNotebookInstanceLifecycleConfigOutput, error)
	}
)

// LookupClients bundles the AWS clients used to find pre-existing resources.
type LookupClients struct {
	EC2       EC2API
	KMS       KMSAPI
	IAM       IAMAPI
	SageMaker SageMakerAPI
}

// NewLookupClients builds clients from the default AWS credential chain.
func NewLookupClients(ctx context.Context, region string) (*LookupClients, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &LookupClients{
		EC2:       ec2.NewFromConfig(awsCfg),
		KMS:       kms.NewFromConfig(awsCfg),
		IAM:       iam.NewFromConfig(awsCfg),
		SageMaker: sagemaker.NewFromConfig(awsCfg),
	}, nil
}

// DetectExistingResources queries AWS in parallel and returns import specs
// for stack resources that already exist.
func DetectExistingResources(ctx context.Context, cfg *StackConfig, c *LookupClients) []*optimport.ImportResource {
	ilog := log.WithField("component", "import")

	var (
		resources []*optimport.ImportResource
		mu        sync.Mutex
		wg        sync.WaitGroup
	)
	add := func(typ, name, id string) {
		mu.Lock()
		resources = append(resources, &optimport.ImportResource{Type: typ, Name: name, ID: id})
		mu.Unlock()
		ilog.Infof("found %s: %s", name, id)
	}

	// KMS key + alias
	wg.Add(1)
	go func() {
		defer wg.Done()
		out, err := c.KMS.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(cfg.KeyAlias)})
		if err != nil || out.KeyMetadata == nil {
			return
		}
		// A key pending deletion cannot be adopted.
		if out.KeyMetadata.DeletionDate != nil {
			ilog.Warnf("key behind %s is pending deletion, not adopting", cfg.KeyAlias)
			return
		}
		add("aws:kms/key:Key", "ag-kms-key", aws.ToString(out.KeyMetadata.KeyId))
		add("aws:kms/alias:Alias", "ag-kms-alias", cfg.KeyAlias)
	}()

	// Network, then its security group
	wg.Add(1)
	go func() {
		defer wg.Done()
		network, vpcID, err := detectNetwork(ctx, cfg, c.EC2)
		if err != nil {
			ilog.Warnf("not adopting network: %v", err)
			return
		}
		if vpcID == "" {
			return
		}
		for _, r := range network {
			add(r.Type, r.Name, r.ID)
		}

		sgs, err := c.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("group-name"), Values: []string{cfg.SecurityGroupName}},
				{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			},
		})
		if err == nil && len(sgs.SecurityGroups) == 1 {
			add("aws:ec2/securityGroup:SecurityGroup", "notebook-sg", aws.ToString(sgs.SecurityGroups[0].GroupId))
		}
	}()

	// Notebook role
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(cfg.RoleName)}); err == nil {
			add("aws:iam/role:Role", "notebook-role", cfg.RoleName)
		}
	}()

	// Lifecycle config
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.SageMaker.DescribeNotebookInstanceLifecycleConfig(ctx, &sagemaker.DescribeNotebookInstanceLifecycleConfigInput{
			NotebookInstanceLifecycleConfigName: aws.String(cfg.LifecycleConfigName),
		})
		if err == nil {
			add("aws:sagemaker/notebookInstanceLifecycleConfiguration:NotebookInstanceLifecycleConfiguration",
				"notebook-lifecycle", cfg.LifecycleConfigName)
		}
	}()

	// Notebook instance
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.SageMaker.DescribeNotebookInstance(ctx, &sagemaker.DescribeNotebookInstanceInput{
			NotebookInstanceName: aws.String(cfg.NotebookName),
		})
		if err == nil {
			add("aws:sagemaker/notebookInstance:NotebookInstance", "notebook", cfg.NotebookName)
		}
	}()

	wg.Wait()

	if len(resources) > 0 {
		ilog.Infof("detected %d existing resources", len(resources))
	}
	return resources
}

func tagValue(tags []ec2types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

// detectNetwork finds the stack's VPC and everything declared inside it.
// The network is adopted whole or not at all; a subnet the stack does not
// own, or a failed lookup, returns an error and no imports. An empty VPC id
// means there is no VPC to adopt.
func detectNetwork(ctx context.Context, cfg *StackConfig, c EC2API) ([]*optimport.ImportResource, string, error) {
	vpcs, err := c.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{cfg.VPCName}},
			{Name: aws.String("tag:ag-vpc:stack"), Values: []string{cfg.StackName}},
		},
	})
	if err != nil || len(vpcs.Vpcs) != 1 {
		return nil, "", nil
	}
	vpcID := aws.ToString(vpcs.Vpcs[0].VpcId)
	inVPC := []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}
	owned := func(tags []ec2types.Tag) bool {
		return tagValue(tags, "ag-vpc:stack") == cfg.StackName && tagValue(tags, "Name") != ""
	}

	imports := []*optimport.ImportResource{{Type: "aws:ec2/vpc:Vpc", Name: "vpc", ID: vpcID}}
	add := func(typ, name, id string) {
		imports = append(imports, &optimport.ImportResource{Type: typ, Name: name, ID: id})
	}

	subnets, err := c.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: inVPC})
	if err != nil {
		return nil, "", fmt.Errorf("describe subnets in %s: %w", vpcID, err)
	}
	subnetNames := make(map[string]string, len(subnets.Subnets))
	for _, sn := range subnets.Subnets {
		id := aws.ToString(sn.SubnetId)
		if !owned(sn.Tags) {
			return nil, "", fmt.Errorf("subnet %s in %s does not belong to %s", id, vpcID, cfg.StackName)
		}
		name := tagValue(sn.Tags, "Name")
		subnetNames[id] = name
		add("aws:ec2/subnet:Subnet", name, id)
	}

	igws, err := c.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{{Name: aws.String("attachment.vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return nil, "", fmt.Errorf("describe internet gateways in %s: %w", vpcID, err)
	}
	for _, g := range igws.InternetGateways {
		if owned(g.Tags) {
			add("aws:ec2/internetGateway:InternetGateway", "igw", aws.ToString(g.InternetGatewayId))
		}
	}

	nats, err := c.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: append(inVPC, ec2types.Filter{Name: aws.String("state"), Values: []string{"pending", "available"}}),
	})
	if err != nil {
		return nil, "", fmt.Errorf("describe nat gateways in %s: %w", vpcID, err)
	}
	for _, n := range nats.NatGateways {
		if !owned(n.Tags) {
			continue
		}
		name := tagValue(n.Tags, "Name")
		add("aws:ec2/natGateway:NatGateway", name, aws.ToString(n.NatGatewayId))
		for _, a := range n.NatGatewayAddresses {
			if a.AllocationId != nil {
				add("aws:ec2/eip:Eip", strings.TrimSuffix(name, "-nat")+"-eip", aws.ToString(a.AllocationId))
				break
			}
		}
	}

	rts, err := c.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: inVPC})
	if err != nil {
		return nil, "", fmt.Errorf("describe route tables in %s: %w", vpcID, err)
	}
	for _, rt := range rts.RouteTables {
		if !owned(rt.Tags) {
			continue
		}
		rtID := aws.ToString(rt.RouteTableId)
		name := tagValue(rt.Tags, "Name")
		if name == cfg.VPCName+"-public" {
			name = "public-rt"
		}
		add("aws:ec2/routeTable:RouteTable", name, rtID)
		for _, a := range rt.Associations {
			subnet, ok := subnetNames[aws.ToString(a.SubnetId)]
			if !ok {
				continue
			}
			add("aws:ec2/routeTableAssociation:RouteTableAssociation", subnet+"-rta", aws.ToString(a.SubnetId)+"/"+rtID)
		}
	}

	endpoints, err := c.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{
		Filters: append(inVPC, ec2types.Filter{
			Name:   aws.String("service-name"),
			Values: []string{fmt.Sprintf("com.amazonaws.%s.s3", cfg.Region)},
		}),
	})
	if err != nil {
		return nil, "", fmt.Errorf("describe vpc endpoints in %s: %w", vpcID, err)
	}
	for _, e := range endpoints.VpcEndpoints {
		if owned(e.Tags) {
			add("aws:ec2/vpcEndpoint:VpcEndpoint", "s3-endpoint", aws.ToString(e.VpcEndpointId))
			break
		}
	}

	return imports, vpcID, nil
}
