package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the IAM role, attach the S3 policy and request the cluster",
		Action: r.Setup,
	}
}

func teardownCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "teardown",
		Usage:  "Close the port, delete the cluster, detach the policy and delete the role",
		Action: r.Teardown,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print the cluster status and, once available, its host",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "Wait up to this long for the cluster to become available",
			},
		},
		Action: r.Status,
	}
}

func openPortCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "openport",
		Usage:  "Allow TCP traffic to the database port from anywhere",
		Action: r.OpenPort,
	}
}

func closePortCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "closeport",
		Usage:  "Revoke the database port ingress rule",
		Action: r.ClosePort,
	}
}

func roleInfoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "roleinfo",
		Usage:  "Print the IAM role name and ARN",
		Action: r.RoleInfo,
	}
}

// Setup provisions the role and requests the cluster.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	lc, err := r.lifecycle(ctx, cmd)
	if err != nil {
		return err
	}
	return lc.Setup(ctx)
}

// Teardown removes everything Setup and OpenPort created.
func (r *Runner) Teardown(ctx context.Context, cmd *cli.Command) error {
	lc, err := r.lifecycle(ctx, cmd)
	if err != nil {
		return err
	}
	return lc.Teardown(ctx)
}

// Status prints the cluster status, optionally waiting for availability.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	lc, err := r.lifecycle(ctx, cmd)
	if err != nil {
		return err
	}
	return lc.Status(ctx, cmd.Duration("wait"))
}

// OpenPort opens the ingress rule. A failure is logged and the command still
// succeeds.
func (r *Runner) OpenPort(ctx context.Context, cmd *cli.Command) error {
	lc, err := r.lifecycle(ctx, cmd)
	if err != nil {
		return err
	}
	lc.OpenPort(ctx)
	return nil
}

// ClosePort revokes the ingress rule.
func (r *Runner) ClosePort(ctx context.Context, cmd *cli.Command) error {
	lc, err := r.lifecycle(ctx, cmd)
	if err != nil {
		return err
	}
	return lc.ClosePort(ctx)
}

// RoleInfo prints the role name and ARN.
func (r *Runner) RoleInfo(ctx context.Context, cmd *cli.Command) error {
	lc, err := r.lifecycle(ctx, cmd)
	if err != nil {
		return err
	}
	return lc.RoleInfo(ctx)
}
