package infra

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

func availabilityZones(ctx *pulumi.Context) ([]string, error) {
	state := "available"
	zones, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{State: &state})
	if err != nil {
		return nil, fmt.Errorf("lookup availability zones: %w", err)
	}
	return zones.Names, nil
}

func provisionNetwork(ctx *pulumi.Context, cfg *StackConfig, opts ...pulumi.ResourceOption) (*NetworkResult, error) {
	azs, err := availabilityZones(ctx)
	if err != nil {
		return nil, err
	}
	plans, err := PlanSubnets(cfg.VPCCIDR, azs, cfg.MaxAZs, DefaultTiers(cfg.SubnetCIDRMask))
	if err != nil {
		return nil, err
	}

	vpc, err := ec2.NewVpc(ctx, "vpc", &ec2.VpcArgs{
		CidrBlock:          pulumi.String(cfg.VPCCIDR),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               stackTags(cfg, cfg.VPCName),
	}, opts...)
	if err != nil {
		return nil, err
	}
	result := &NetworkResult{VPC: vpc, Plans: plans}

	igw, err := ec2.NewInternetGateway(ctx, "igw", &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  stackTags(cfg, cfg.VPCName+"-igw"),
	}, opts...)
	if err != nil {
		return nil, err
	}

	publicRT, err := ec2.NewRouteTable(ctx, "public-rt", &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String("0.0.0.0/0"),
				GatewayId: igw.ID(),
			},
		},
		Tags: stackTags(cfg, cfg.VPCName+"-public"),
	}, opts...)
	if err != nil {
		return nil, err
	}
	result.RouteTables = append(result.RouteTables, publicRT)

	// Public subnets first: each zone's NAT gateway lives in its public subnet.
	natByAZ := make(map[string]*ec2.NatGateway)
	for _, p := range filterPlans(plans, Public) {
		subnet, err := ec2.NewSubnet(ctx, p.Name, &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(p.CIDR),
			AvailabilityZone:    pulumi.String(p.AZ),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags:                subnetTags(cfg, p),
		}, opts...)
		if err != nil {
			return nil, err
		}
		result.PublicSubnets = append(result.PublicSubnets, subnet)

		if _, err := ec2.NewRouteTableAssociation(ctx, p.Name+"-rta", &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: publicRT.ID(),
		}, opts...); err != nil {
			return nil, err
		}

		eip, err := ec2.NewEip(ctx, p.Name+"-eip", &ec2.EipArgs{
			Domain: pulumi.String("vpc"),
			Tags:   stackTags(cfg, p.Name+"-eip"),
		}, opts...)
		if err != nil {
			return nil, err
		}
		nat, err := ec2.NewNatGateway(ctx, p.Name+"-nat", &ec2.NatGatewayArgs{
			AllocationId: eip.ID(),
			SubnetId:     subnet.ID(),
			Tags:         stackTags(cfg, p.Name+"-nat"),
		}, append(opts, pulumi.DependsOn([]pulumi.Resource{igw}))...)
		if err != nil {
			return nil, err
		}
		natByAZ[p.AZ] = nat
		result.NATGateways = append(result.NATGateways, nat)
	}

	for _, p := range filterPlans(plans, PrivateWithEgress) {
		subnet, err := ec2.NewSubnet(ctx, p.Name, &ec2.SubnetArgs{
			VpcId:            vpc.ID(),
			CidrBlock:        pulumi.String(p.CIDR),
			AvailabilityZone: pulumi.String(p.AZ),
			Tags:             subnetTags(cfg, p),
		}, opts...)
		if err != nil {
			return nil, err
		}
		result.PrivateSubnets = append(result.PrivateSubnets, subnet)

		nat, ok := natByAZ[p.AZ]
		if !ok {
			return nil, fmt.Errorf("no public subnet in %s for %s egress", p.AZ, p.Name)
		}
		rt, err := ec2.NewRouteTable(ctx, p.Name+"-rt", &ec2.RouteTableArgs{
			VpcId: vpc.ID(),
			Routes: ec2.RouteTableRouteArray{
				&ec2.RouteTableRouteArgs{
					CidrBlock:    pulumi.String("0.0.0.0/0"),
					NatGatewayId: nat.ID(),
				},
			},
			Tags: stackTags(cfg, p.Name+"-rt"),
		}, opts...)
		if err != nil {
			return nil, err
		}
		result.RouteTables = append(result.RouteTables, rt)

		if _, err := ec2.NewRouteTableAssociation(ctx, p.Name+"-rta", &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: rt.ID(),
		}, opts...); err != nil {
			return nil, err
		}
	}

	// S3 traffic from every subnet stays on the gateway endpoint.
	rtIDs := make(pulumi.StringArray, 0, len(result.RouteTables))
	for _, rt := range result.RouteTables {
		rtIDs = append(rtIDs, rt.ID().ToStringOutput())
	}
	endpoint, err := ec2.NewVpcEndpoint(ctx, "s3-endpoint", &ec2.VpcEndpointArgs{
		VpcId:           vpc.ID(),
		ServiceName:     pulumi.Sprintf("com.amazonaws.%s.s3", cfg.Region),
		VpcEndpointType: pulumi.String("Gateway"),
		RouteTableIds:   rtIDs,
		Tags:            stackTags(cfg, cfg.VPCName+"-s3"),
	}, opts...)
	if err != nil {
		return nil, err
	}
	result.S3Endpoint = endpoint

	return result, nil
}

func subnetTags(cfg *StackConfig, p SubnetPlan) pulumi.StringMap {
	tags := stackTags(cfg, p.Name)
	tags["ag-vpc:subnet-type"] = pulumi.String(p.Type.String())
	tags["ag-vpc:tier"] = pulumi.String(p.Tier)
	return tags
}
