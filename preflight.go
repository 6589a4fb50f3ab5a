package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/ag-research/ag-vpc/lifecycle"
)

var preflightLog = logrus.WithField("component", "preflight")

var errArchiveNotFound = errors.New("bootstrap archive not found")

// headObjectAPI is the part of the S3 client CheckArchive uses.
type headObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// callerIdentityAPI is the part of the STS client CallerIdentity uses.
type callerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, opts ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// CheckArchive verifies the bootstrap archive exists before the notebook is
// created. The lifecycle script would otherwise fail on first boot.
func CheckArchive(ctx context.Context, client headObjectAPI, location string) error {
	bucket, key, err := lifecycle.ParseArchiveLocation(location)
	if err != nil {
		return err
	}

	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", errArchiveNotFound, location)
		}
		return fmt.Errorf("check archive %s: %w", location, err)
	}

	preflightLog.Infof("archive %s found (%d bytes)", location, aws.ToInt64(out.ContentLength))
	return nil
}

// isNotFound reports whether a HeadObject error means the object is missing.
func isNotFound(err error) bool {
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}

// CallerIdentity returns the account and principal ARN of the current credentials.
func CallerIdentity(ctx context.Context, client callerIdentityAPI) (account, arn string, err error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("get caller identity: %w", err)
	}
	return aws.ToString(out.Account), aws.ToString(out.Arn), nil
}

// runPreflight checks credentials and the archive. Failures are returned so
// up can stop before touching the stack.
func runPreflight(ctx context.Context) error {
	stsClient, err := awsc.STS(ctx)
	if err != nil {
		return err
	}
	account, arn, err := CallerIdentity(ctx, stsClient)
	if err != nil {
		if isAuthError(err) {
			return fmt.Errorf("AWS credentials invalid or expired: %w", err)
		}
		return err
	}
	preflightLog.Infof("account=%s principal=%s region=%s", account, arn, cfg.Region)

	s3Client, err := awsc.S3(ctx)
	if err != nil {
		return err
	}
	return CheckArchive(ctx, s3Client, cfg.ArchiveLocation)
}
