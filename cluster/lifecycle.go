package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"
)

// Lifecycle runs the provisioning procedures built from Manager calls. Every
// procedure makes each call once and stops at the first error or Failed
// outcome; OpenPort is the exception and only logs its failure.
type Lifecycle struct {
	mgr    *Manager
	logger *log.Logger
	out    io.Writer
}

// NewLifecycle creates a Lifecycle that logs progress to logger and writes
// command output (status, role details) to out.
func NewLifecycle(mgr *Manager, logger *log.Logger, out io.Writer) *Lifecycle {
	return &Lifecycle{mgr: mgr, logger: logger, out: out}
}

// Setup creates the role, attaches the S3 policy and requests the cluster.
// It returns once the cluster request is accepted, without waiting for the
// cluster to become available.
func (l *Lifecycle) Setup(ctx context.Context) error {
	l.logger.Info("Creating IAM Role", "role", l.mgr.cfg.IAMRole.RoleName)
	role, outcome, err := l.mgr.CreateRole(ctx)
	if err := l.check(err, outcome, "Successfully Created Role", "arn", role.ARN); err != nil {
		return err
	}

	l.logger.Info("Attaching IAM Role Policy for S3 Access", "policy", l.mgr.cfg.IAMRole.S3PolicyARN)
	outcome, err = l.mgr.AttachPolicy(ctx)
	if err := l.check(err, outcome, "Successfully Attached Role Policy"); err != nil {
		return err
	}

	l.logger.Info("Creating cluster", "identifier", l.mgr.cfg.Cluster.Identifier)
	info, outcome, err := l.mgr.CreateCluster(ctx, role.ARN)
	if err := l.check(err, outcome, "Cluster Creation Successfully Accepted", "status", info.Status); err != nil {
		return err
	}

	_, err = fmt.Fprintf(l.out, "Role ARN: %s\nRun 'dwh status' for status information.\n", role.ARN)
	return err
}

// Teardown closes the port and requests cluster deletion before detaching the
// policy and deleting the role; the role stays valid while the cluster exists.
func (l *Lifecycle) Teardown(ctx context.Context) error {
	l.logger.Info("Closing TCP Port", "port", l.mgr.cfg.Cluster.DBPort)
	outcome, err := l.mgr.CloseIngress(ctx)
	if err := l.check(err, outcome, "Successfully Closed Port"); err != nil {
		return err
	}

	l.logger.Info("Requesting Cluster Deletion", "identifier", l.mgr.cfg.Cluster.Identifier)
	info, outcome, err := l.mgr.DeleteCluster(ctx)
	if err := l.check(err, outcome, "Request to delete cluster accepted", "status", info.Status); err != nil {
		return err
	}

	l.logger.Info("Removing Policy from Role", "role", l.mgr.cfg.IAMRole.RoleName)
	outcome, err = l.mgr.DetachPolicy(ctx)
	if err := l.check(err, outcome, "Successfully Removed Role Policy"); err != nil {
		return err
	}

	l.logger.Info("Deleting Role", "role", l.mgr.cfg.IAMRole.RoleName)
	outcome, err = l.mgr.DeleteRole(ctx)
	return l.check(err, outcome, "Successfully Deleted Role")
}

// Status prints the cluster status and, once available, its host. A positive
// wait blocks until the cluster is available or the wait elapses.
func (l *Lifecycle) Status(ctx context.Context, wait time.Duration) error {
	var (
		info Info
		err  error
	)
	if wait > 0 {
		l.logger.Info("Waiting for cluster", "identifier", l.mgr.cfg.Cluster.Identifier, "timeout", wait)
		info, err = l.mgr.WaitAvailable(ctx, wait)
	} else {
		info, err = l.mgr.DescribeCluster(ctx)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(l.out, "Status: %s\nHost: %s\n", info.Status, info.Host)
	return err
}

// OpenPort exposes the database port. Failures are logged, not returned.
func (l *Lifecycle) OpenPort(ctx context.Context) Outcome {
	l.logger.Info("Opening TCP Port", "port", l.mgr.cfg.Cluster.DBPort)
	outcome, err := l.mgr.OpenIngress(ctx)
	if err != nil {
		l.logger.Error("Failed to open port", errorFields(err)...)
		return Failed("%v", err)
	}
	if !outcome.IsOk() {
		l.logger.Error("Failed to open port", "reason", outcome.Reason())
		return outcome
	}
	l.logger.Info("Successfully Opened Port")
	return outcome
}

// ClosePort revokes the ingress rule without touching the cluster or role.
func (l *Lifecycle) ClosePort(ctx context.Context) error {
	l.logger.Info("Closing TCP Port", "port", l.mgr.cfg.Cluster.DBPort)
	outcome, err := l.mgr.CloseIngress(ctx)
	return l.check(err, outcome, "Successfully Closed Port")
}

// RoleInfo prints the role name and ARN.
func (l *Lifecycle) RoleInfo(ctx context.Context) error {
	role, err := l.mgr.DescribeRole(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(l.out, "Role: %s\nARN: %s\n", role.Name, role.ARN)
	return err
}

// check turns a call result into the procedure's next step: an error or
// Failed outcome stops it, an Ok outcome logs the success message.
func (l *Lifecycle) check(err error, outcome Outcome, success string, kv ...any) error {
	if err != nil {
		l.logger.Error("Provider call failed", errorFields(err)...)
		return err
	}
	if !outcome.IsOk() {
		l.logger.Warn("Provider did not confirm the call", "reason", outcome.Reason())
		return outcome.Err()
	}
	l.logger.Info(success, kv...)
	return nil
}

// errorFields exposes the provider error code when there is one.
func errorFields(err error) []any {
	fields := []any{"err", err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		fields = append(fields, "code", apiErr.ErrorCode())
	}
	return fields
}
