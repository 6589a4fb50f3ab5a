package infra

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/sagemaker"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/ag-research/ag-vpc/lifecycle"
)

// archiveLocationKey is the stack config key of the deploy-time archive
// parameter.
const archiveLocationKey = "archiveLocation"

// renderOnCreate renders the bootstrap script once the security group, subnet
// and key ids are known. The archive location comes from stack config.
func renderOnCreate(access *AccessResult, net *NetworkResult, key *KeyResult, params lifecycle.Params) pulumi.StringOutput {
	return pulumi.All(access.SecurityGroup.ID(), net.PrivateSubnetIDs(), key.Key.Arn).ApplyT(
		func(args []interface{}) (string, error) {
			script, err := lifecycle.Render(lifecycle.Declared{
				SecurityGroupID: string(args[0].(pulumi.ID)),
				SubnetIDs:       args[1].([]string),
				KeyARN:          args[2].(string),
			}, params, lifecycle.DefaultLayout())
			if err != nil {
				return "", err
			}
			return lifecycle.Encode(script), nil
		}).(pulumi.StringOutput)
}

func provisionNotebook(ctx *pulumi.Context, cfg *StackConfig, net *NetworkResult, access *AccessResult, key *KeyResult, id *IAMResult, opts ...pulumi.ResourceOption) (*NotebookResult, error) {
	location, err := config.Try(ctx, archiveLocationKey)
	if err != nil {
		return nil, fmt.Errorf("%w: set %s:%s", lifecycle.ErrMissingArchive, projectName, archiveLocationKey)
	}
	params := lifecycle.Params{ArchiveLocation: location}
	if _, _, err := lifecycle.ParseArchiveLocation(params.ArchiveLocation); err != nil {
		return nil, err
	}

	lc, err := sagemaker.NewNotebookInstanceLifecycleConfiguration(ctx, "notebook-lifecycle", &sagemaker.NotebookInstanceLifecycleConfigurationArgs{
		Name:     pulumi.String(cfg.LifecycleConfigName),
		OnCreate: renderOnCreate(access, net, key, params),
	}, opts...)
	if err != nil {
		return nil, err
	}

	directInternet := "Disabled"
	if cfg.DirectInternetAccess {
		directInternet = "Enabled"
	}
	rootAccess := "Disabled"
	if cfg.RootAccess {
		rootAccess = "Enabled"
	}

	instance, err := sagemaker.NewNotebookInstance(ctx, "notebook", &sagemaker.NotebookInstanceArgs{
		Name:                 pulumi.String(cfg.NotebookName),
		RoleArn:              id.Role.Arn,
		InstanceType:         pulumi.String(cfg.InstanceType),
		VolumeSize:           pulumi.Int(cfg.VolumeSizeGB),
		KmsKeyId:             key.Key.KeyId,
		SubnetId:             net.PrivateSubnets[0].ID(),
		SecurityGroups:       pulumi.StringArray{access.SecurityGroup.ID().ToStringOutput()},
		LifecycleConfigName:  lc.Name,
		DirectInternetAccess: pulumi.String(directInternet),
		RootAccess:           pulumi.String(rootAccess),
		PlatformIdentifier:   pulumi.String(cfg.PlatformIdentifier),
		Tags:                 stackTags(cfg, cfg.NotebookName),
	}, append(opts, pulumi.DependsOn([]pulumi.Resource{id.Policy}))...)
	if err != nil {
		return nil, err
	}

	return &NotebookResult{Lifecycle: lc, Instance: instance}, nil
}
