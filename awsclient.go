package main

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

// awsClients lazily loads the AWS config once and caches the service
// clients built from it.
type awsClients struct {
	mu        sync.Mutex
	cfg       *aws.Config
	sagemaker *sagemaker.Client
	s3        *s3.Client
	sts       *sts.Client
}

// awsc is the global cached client pool.
var awsc awsClients

func (a *awsClients) config(ctx context.Context) (aws.Config, error) {
	if a.cfg != nil {
		return *a.cfg, nil
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, err
	}
	logrus.WithField("component", "awsclient").Debugf("loaded aws config for %s", c.Region)
	a.cfg = &c
	return c, nil
}

// SageMaker returns a cached SageMaker client, creating it on first call.
func (a *awsClients) SageMaker(ctx context.Context) (*sagemaker.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sagemaker != nil {
		return a.sagemaker, nil
	}
	c, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	a.sagemaker = sagemaker.NewFromConfig(c)
	return a.sagemaker, nil
}

// S3 returns a cached S3 client, creating it on first call.
func (a *awsClients) S3(ctx context.Context) (*s3.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.s3 != nil {
		return a.s3, nil
	}
	c, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	a.s3 = s3.NewFromConfig(c)
	return a.s3, nil
}

// STS returns a cached STS client, creating it on first call.
func (a *awsClients) STS(ctx context.Context) (*sts.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sts != nil {
		return a.sts, nil
	}
	c, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	a.sts = sts.NewFromConfig(c)
	return a.sts, nil
}

// isAuthError returns true if the error indicates expired or invalid AWS credentials.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ExpiredToken", "ExpiredTokenException", "InvalidClientTokenId",
			"UnrecognizedClientException", "AccessDenied", "AccessDeniedException":
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "failed to refresh cached credentials") ||
		strings.Contains(msg, "no EC2 IMDS role found") ||
		strings.Contains(msg, "token has expired")
}
