package infra

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const testAccount = "123456789012"

// registered is one resource seen by the mock monitor.
type registered struct {
	Type   string
	Name   string
	ID     string
	Inputs resource.PropertyMap
	Deps   []string
	Retain bool
}

// mocks records registered resources and fills in the computed attributes
// the program reads back (arns, key ids).
type mocks struct {
	mu        sync.Mutex
	zones     []string
	resources []registered
}

func newMocks(zones ...string) *mocks {
	return &mocks{zones: zones}
}

func (m *mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	id := args.Name + "-id"
	state := args.Inputs.Copy()

	switch args.TypeToken {
	case "aws:kms/key:Key":
		id = "1234abcd-" + args.Name
		state["keyId"] = resource.NewStringProperty(id)
		state["arn"] = resource.NewStringProperty(fmt.Sprintf("arn:aws:kms:us-west-2:%s:key/%s", testAccount, id))
	case "aws:iam/role:Role":
		state["arn"] = resource.NewStringProperty(fmt.Sprintf("arn:aws:iam::%s:role/%s", testAccount, state["name"].StringValue()))
	case "aws:ec2/subnet:Subnet":
		id = "subnet-" + args.Name
	case "aws:ec2/securityGroup:SecurityGroup":
		id = "sg-" + args.Name
	case "aws:ec2/vpc:Vpc":
		id = "vpc-" + args.Name
	}

	var (
		deps   []string
		retain bool
	)
	if args.RegisterRPC != nil {
		deps = args.RegisterRPC.GetDependencies()
		retain = args.RegisterRPC.GetRetainOnDelete()
	}

	m.mu.Lock()
	m.resources = append(m.resources, registered{
		Type:   args.TypeToken,
		Name:   args.Name,
		ID:     id,
		Inputs: args.Inputs,
		Deps:   deps,
		Retain: retain,
	})
	m.mu.Unlock()
	return id, state, nil
}

func (m *mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	if args.Token == "aws:index/getAvailabilityZones:getAvailabilityZones" {
		names := make([]interface{}, len(m.zones))
		for i, z := range m.zones {
			names[i] = z
		}
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":    "us-west-2",
			"names": names,
		}), nil
	}
	return resource.PropertyMap{}, nil
}

func (m *mocks) byType(typ string) []registered {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []registered
	for _, r := range m.resources {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func (m *mocks) byName(name string) (registered, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.Name == name {
			return r, true
		}
	}
	return registered{}, false
}

// dependsOn reports whether r lists a dependency on the resource named name.
func (r registered) dependsOn(name string) bool {
	for _, urn := range r.Deps {
		if strings.HasSuffix(urn, "::"+name) {
			return true
		}
	}
	return false
}
