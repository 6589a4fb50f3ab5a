package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/sirupsen/logrus"
)

var nbLog = logrus.WithField("component", "notebook")

// notebookAPI is the part of the SageMaker client used for lifecycle control.
type notebookAPI interface {
	DescribeNotebookInstance(ctx context.Context, in *sagemaker.DescribeNotebookInstanceInput, opts ...func(*sagemaker.Options)) (*sagemaker.DescribeNotebookInstanceOutput, error)
	StartNotebookInstance(ctx context.Context, in *sagemaker.StartNotebookInstanceInput, opts ...func(*sagemaker.Options)) (*sagemaker.StartNotebookInstanceOutput, error)
	StopNotebookInstance(ctx context.Context, in *sagemaker.StopNotebookInstanceInput, opts ...func(*sagemaker.Options)) (*sagemaker.StopNotebookInstanceOutput, error)
}

var errNotebookFailed = errors.New("notebook instance failed")

// pollInterval and pollAttempts bound every wait loop below.
var (
	pollInterval = 10 * time.Second
	pollAttempts = 90
)

// NotebookStatus is a snapshot of the notebook instance.
type NotebookStatus struct {
	Name          string
	Status        smtypes.NotebookInstanceStatus
	InstanceType  string
	URL           string
	SubnetID      string
	KMSKeyID      string
	FailureReason string
}

func isTransitional(s smtypes.NotebookInstanceStatus) bool {
	return s == smtypes.NotebookInstanceStatusPending ||
		s == smtypes.NotebookInstanceStatusStopping ||
		s == smtypes.NotebookInstanceStatusUpdating ||
		s == smtypes.NotebookInstanceStatusDeleting
}

func getNotebookStatus(ctx context.Context, client notebookAPI, name string) (*NotebookStatus, error) {
	out, err := client.DescribeNotebookInstance(ctx, &sagemaker.DescribeNotebookInstanceInput{
		NotebookInstanceName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("describe notebook %s: %w", name, err)
	}
	return &NotebookStatus{
		Name:          name,
		Status:        out.NotebookInstanceStatus,
		InstanceType:  string(out.InstanceType),
		URL:           aws.ToString(out.Url),
		SubnetID:      aws.ToString(out.SubnetId),
		KMSKeyID:      aws.ToString(out.KmsKeyId),
		FailureReason: aws.ToString(out.FailureReason),
	}, nil
}

// waitUntil polls until done accepts the notebook's status and returns that
// snapshot. what names the awaited change in the timeout error.
func waitUntil(ctx context.Context, client notebookAPI, name, what string, done func(smtypes.NotebookInstanceStatus) bool) (*NotebookStatus, error) {
	for i := 0; i < pollAttempts; i++ {
		st, err := getNotebookStatus(ctx, client, name)
		if err != nil {
			return nil, err
		}
		if done(st.Status) {
			return st, nil
		}
		nbLog.Infof("status %s, waiting...", st.Status)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return nil, fmt.Errorf("timeout waiting for notebook %s to %s", name, what)
}

// waitForStatus polls until the notebook leaves its transitional states and
// returns the settled status.
func waitForStatus(ctx context.Context, client notebookAPI, name string) (*NotebookStatus, error) {
	return waitUntil(ctx, client, name, "settle", func(s smtypes.NotebookInstanceStatus) bool {
		return !isTransitional(s)
	})
}

// waitToLeave polls until a start or stop request shows up in the status.
// Describe can report the old status for a moment after the request.
func waitToLeave(ctx context.Context, client notebookAPI, name string, from ...smtypes.NotebookInstanceStatus) error {
	_, err := waitUntil(ctx, client, name, "leave "+string(from[0]), func(s smtypes.NotebookInstanceStatus) bool {
		return !slices.Contains(from, s)
	})
	return err
}

// startNotebook starts a stopped notebook and waits for InService.
func startNotebook(ctx context.Context, client notebookAPI, name string) (*NotebookStatus, error) {
	st, err := waitForStatus(ctx, client, name)
	if err != nil {
		return nil, err
	}

	switch st.Status {
	case smtypes.NotebookInstanceStatusInService:
		nbLog.Infof("%s already in service", name)
		return st, nil
	case smtypes.NotebookInstanceStatusStopped, smtypes.NotebookInstanceStatusFailed:
	default:
		return nil, fmt.Errorf("notebook %s in unexpected state: %s", name, st.Status)
	}

	nbLog.Infof("starting %s...", name)
	if _, err := client.StartNotebookInstance(ctx, &sagemaker.StartNotebookInstanceInput{
		NotebookInstanceName: aws.String(name),
	}); err != nil {
		return nil, fmt.Errorf("start notebook %s: %w", name, err)
	}

	if err := waitToLeave(ctx, client, name, smtypes.NotebookInstanceStatusStopped, smtypes.NotebookInstanceStatusFailed); err != nil {
		return nil, err
	}
	st, err = waitForStatus(ctx, client, name)
	if err != nil {
		return nil, err
	}
	if st.Status != smtypes.NotebookInstanceStatusInService {
		return st, fmt.Errorf("%w: %s", errNotebookFailed, st.FailureReason)
	}
	nbLog.Infof("%s in service", name)
	return st, nil
}

// stopNotebook stops the notebook and waits for Stopped.
func stopNotebook(ctx context.Context, client notebookAPI, name string) error {
	st, err := waitForStatus(ctx, client, name)
	if err != nil {
		return err
	}
	if st.Status == smtypes.NotebookInstanceStatusStopped || st.Status == smtypes.NotebookInstanceStatusFailed {
		nbLog.Infof("%s already stopped (%s)", name, st.Status)
		return nil
	}

	nbLog.Infof("stopping %s (status=%s)...", name, st.Status)
	if _, err := client.StopNotebookInstance(ctx, &sagemaker.StopNotebookInstanceInput{
		NotebookInstanceName: aws.String(name),
	}); err != nil {
		return fmt.Errorf("stop notebook %s: %w", name, err)
	}

	if err := waitToLeave(ctx, client, name, smtypes.NotebookInstanceStatusInService); err != nil {
		return err
	}
	st, err = waitForStatus(ctx, client, name)
	if err != nil {
		return err
	}
	if st.Status != smtypes.NotebookInstanceStatusStopped {
		return fmt.Errorf("notebook %s did not stop: %s", name, st.Status)
	}
	nbLog.Infof("%s stopped", name)
	return nil
}
