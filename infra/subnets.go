package infra

import (
	"errors"
	"fmt"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
)

// SubnetType is the connectivity of a subnet tier.
type SubnetType int

const (
	// PrivateWithEgress subnets route outbound traffic through a NAT gateway.
	PrivateWithEgress SubnetType = iota
	// Public subnets route through the internet gateway.
	Public
)

func (t SubnetType) String() string {
	switch t {
	case PrivateWithEgress:
		return "private"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("SubnetType(%d)", int(t))
	}
}

// SubnetTier is one row of the subnet configuration. Every tier gets one
// subnet per availability zone.
type SubnetTier struct {
	Name     string
	Type     SubnetType
	CIDRMask int
}

// SubnetPlan is a single subnet derived from the VPC configuration.
type SubnetPlan struct {
	Name string
	Tier string
	Type SubnetType
	AZ   string
	CIDR string
}

var (
	ErrVPCExhausted  = errors.New("vpc address block exhausted")
	ErrInvalidMask   = errors.New("invalid subnet cidr mask")
	ErrNoZones       = errors.New("no availability zones")
	ErrDuplicateTier = errors.New("duplicate subnet tier name")
)

// DefaultTiers is one private tier with egress and one public tier, both /24.
func DefaultTiers(mask int) []SubnetTier {
	return []SubnetTier{
		{Name: "ag-private-1", Type: PrivateWithEgress, CIDRMask: mask},
		{Name: "ag-public-1", Type: Public, CIDRMask: mask},
	}
}

// PlanSubnets lays out subnets for the first maxAZs zones. Blocks are handed
// out from the start of the VPC range, tier by tier, zone by zone, so the
// result only depends on the inputs.
func PlanSubnets(vpcCIDR string, azs []string, maxAZs int, tiers []SubnetTier) ([]SubnetPlan, error) {
	_, base, err := net.ParseCIDR(vpcCIDR)
	if err != nil {
		return nil, fmt.Errorf("parse vpc cidr: %w", err)
	}
	baseOnes, bits := base.Mask.Size()

	if maxAZs > 0 && len(azs) > maxAZs {
		azs = azs[:maxAZs]
	}
	if len(azs) == 0 {
		return nil, ErrNoZones
	}

	seen := make(map[string]bool, len(tiers))
	var (
		plans []SubnetPlan
		prev  *net.IPNet
	)
	for _, tier := range tiers {
		if seen[tier.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTier, tier.Name)
		}
		seen[tier.Name] = true
		if tier.CIDRMask < baseOnes || tier.CIDRMask > bits {
			return nil, fmt.Errorf("%w: /%d in %s", ErrInvalidMask, tier.CIDRMask, vpcCIDR)
		}

		for i, az := range azs {
			var next *net.IPNet
			if prev == nil {
				next, err = cidr.Subnet(base, tier.CIDRMask-baseOnes, 0)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidMask, err)
				}
			} else {
				var wrapped bool
				next, wrapped = cidr.NextSubnet(prev, tier.CIDRMask)
				if wrapped {
					return nil, ErrVPCExhausted
				}
			}
			if _, last := cidr.AddressRange(next); !base.Contains(next.IP) || !base.Contains(last) {
				return nil, fmt.Errorf("%w: %s needs more room than %s", ErrVPCExhausted, tier.Name, vpcCIDR)
			}

			plans = append(plans, SubnetPlan{
				Name: fmt.Sprintf("%s-%d", tier.Name, i+1),
				Tier: tier.Name,
				Type: tier.Type,
				AZ:   az,
				CIDR: next.String(),
			})
			prev = next
		}
	}
	return plans, nil
}

// filterPlans returns the plans of one subnet type, in plan order.
func filterPlans(plans []SubnetPlan, t SubnetType) []SubnetPlan {
	var out []SubnetPlan
	for _, p := range plans {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}
