package infra

import (
	"encoding/json"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// keyActions are the KMS actions the notebook role may perform, on the stack
// key only.
var keyActions = []string{
	"kms:Encrypt",
	"kms:Decrypt",
	"kms:ReEncryptFrom",
	"kms:ReEncryptTo",
	"kms:GenerateDataKey",
	"kms:GenerateDataKeyWithoutPlaintext",
	"kms:DescribeKey",
	"kms:CreateGrant",
	"kms:ListGrants",
}

var storageActions = []string{
	"s3:GetObject",
	"s3:PutObject",
	"s3:DeleteObject",
	"s3:ListBucket",
	"s3:GetBucketLocation",
}

// PolicyDocument is an IAM policy document.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single IAM policy statement.
type Statement struct {
	Sid       string            `json:"Sid,omitempty"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

func assumeRolePolicy() PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "sagemaker.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// notebookPolicy grants the key actions on keyARN and broad object storage
// access.
func notebookPolicy(keyARN string) PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{
			{
				Sid:      "StackKey",
				Effect:   "Allow",
				Action:   append([]string(nil), keyActions...),
				Resource: []string{keyARN},
			},
			{
				Sid:      "ObjectStorage",
				Effect:   "Allow",
				Action:   append([]string(nil), storageActions...),
				Resource: []string{"arn:aws:s3:::*", "arn:aws:s3:::*/*"},
			},
		},
	}
}

func (d PolicyDocument) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func provisionIAM(ctx *pulumi.Context, cfg *StackConfig, key *KeyResult, opts ...pulumi.ResourceOption) (*IAMResult, error) {
	assume, err := assumeRolePolicy().JSON()
	if err != nil {
		return nil, err
	}

	role, err := iam.NewRole(ctx, "notebook-role", &iam.RoleArgs{
		Name:             pulumi.String(cfg.RoleName),
		Description:      pulumi.String("Execution role for the ag-vpc notebook instance"),
		AssumeRolePolicy: pulumi.String(assume),
		Tags:             stackTags(cfg, cfg.RoleName),
	}, opts...)
	if err != nil {
		return nil, err
	}

	policy, err := iam.NewRolePolicy(ctx, "notebook-policy", &iam.RolePolicyArgs{
		Role: role.Name,
		Policy: key.Key.Arn.ApplyT(func(arn string) (string, error) {
			return notebookPolicy(arn).JSON()
		}).(pulumi.StringOutput),
	}, opts...)
	if err != nil {
		return nil, err
	}

	return &IAMResult{Role: role, Policy: policy}, nil
}
