// Package main is the dwh command: it provisions the Redshift cluster and its
// IAM role, and runs the schema rebuild and ETL procedures against it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gurre/redshift-dwh/config"
	"github.com/gurre/redshift-dwh/logging"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logging.NewLogger(os.Stderr, false)})

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the root command. Without a subcommand, or with one it does
// not know, it prints usage.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "dwh",
		Usage:  "Provision a Redshift data warehouse and load the song play star schema",
		Writer: r.output,
		Action: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the settings file",
				Value: config.DefaultSettingsPath,
			},
			&cli.StringFlag{
				Name:  "credentials",
				Usage: "Path to the AWS credentials file",
				Value: config.DefaultCredentialsPath,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: r.register(),
	}
}

func usage(ctx context.Context, cmd *cli.Command) error {
	if err := cli.ShowAppHelp(cmd); err != nil {
		return err
	}
	if cmd.Args().Present() {
		return fmt.Errorf("unknown command %q", cmd.Args().First())
	}
	return nil
}
