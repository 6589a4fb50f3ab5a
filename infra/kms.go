package infra

import (
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

func provisionKey(ctx *pulumi.Context, cfg *StackConfig, opts ...pulumi.ResourceOption) (*KeyResult, error) {
	// Destroyed with the stack unless retained; AWS keeps it pending for the
	// deletion window either way.
	keyOpts := append([]pulumi.ResourceOption{pulumi.RetainOnDelete(cfg.RetainKey)}, opts...)

	key, err := kms.NewKey(ctx, "ag-kms-key", &kms.KeyArgs{
		Description:          pulumi.String(cfg.KeyDescription),
		DeletionWindowInDays: pulumi.Int(cfg.KeyPendingWindowDays),
		EnableKeyRotation:    pulumi.Bool(cfg.KeyRotation),
		KeyUsage:             pulumi.String("ENCRYPT_DECRYPT"),
		Tags:                 stackTags(cfg, "ag-kms-key"),
	}, keyOpts...)
	if err != nil {
		return nil, err
	}

	alias, err := kms.NewAlias(ctx, "ag-kms-alias", &kms.AliasArgs{
		Name:        pulumi.String(cfg.KeyAlias),
		TargetKeyId: key.KeyId,
	}, opts...)
	if err != nil {
		return nil, err
	}

	return &KeyResult{Key: key, Alias: alias}, nil
}

// stackTags tags every taggable resource so it can be found again by the
// adoption lookups.
func stackTags(cfg *StackConfig, name string) pulumi.StringMap {
	return pulumi.StringMap{
		"Name":          pulumi.String(name),
		"ag-vpc:stack":  pulumi.String(cfg.StackName),
		"ag-vpc:region": pulumi.String(cfg.Region),
	}
}
