package main

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/gurre/redshift-dwh/catalog"
	"github.com/gurre/redshift-dwh/pipeline"
	"github.com/gurre/redshift-dwh/preview"
	"github.com/gurre/redshift-dwh/report"
	"github.com/gurre/redshift-dwh/source"
	"github.com/urfave/cli/v3"
)

func createTablesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "createtables",
		Usage:  "Drop and recreate the staging and star schema tables",
		Action: r.CreateTables,
	}
}

func etlCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "etl",
		Usage:  "Copy the raw datasets into staging and fill the star schema",
		Action: r.ETL,
	}
}

func sourcesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Count the objects under the configured dataset prefixes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "sample",
				Usage: "Number of object keys to print per dataset",
				Value: 5,
			},
		},
		Action: r.Sources,
	}
}

func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Derive the star schema in memory from a sample of the raw datasets",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "sample",
				Usage: "Number of objects to read per dataset",
				Value: 10,
			},
		},
		Action: r.Preview,
	}
}

func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print the report of the last createtables or etl run",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Report,
	}
}

// CreateTables rebuilds the schema.
func (r *Runner) CreateTables(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.config(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWarehouse(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return r.withPipeline(ctx, cfg, func(p *pipeline.Runner) error {
		_, err := p.RebuildSchema(ctx)
		return err
	})
}

// ETL loads the staging tables and fills the star schema.
func (r *Runner) ETL(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.config(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLoad(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	src := catalog.CopySource{
		LogData:  cfg.S3.LogData,
		SongData: cfg.S3.SongData,
		RoleARN:  cfg.IAMRole.RoleARN,
	}
	return r.withPipeline(ctx, cfg, func(p *pipeline.Runner) error {
		_, err := p.LoadAndTransform(ctx, src)
		return err
	})
}

// Sources lists both dataset prefixes and prints their size.
func (r *Runner) Sources(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.config(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSources(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := r.providers(ctx, cfg.Credentials)
	if err != nil {
		return err
	}
	lister := source.NewS3Lister(p.S3, cmd.Int("sample"))

	for _, uri := range []string{cfg.S3.LogData, cfg.S3.SongData} {
		summary, err := lister.List(ctx, uri)
		if err != nil {
			return err
		}
		if err := r.writePlain("%s\n", summary); err != nil {
			return err
		}
		for _, obj := range summary.Sample {
			if err := r.writePlain("  %s (%d bytes)\n", obj.Key, obj.Size); err != nil {
				return err
			}
		}
	}
	return nil
}

// Preview samples both datasets and prints the derived table sizes.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.config(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSources(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := r.providers(ctx, cfg.Credentials)
	if err != nil {
		return err
	}
	lister := source.NewS3Lister(p.S3, cmd.Int("sample"))

	res, err := preview.NewPreviewer(lister, p.Streamer, r.logger).Run(ctx, cfg.S3.LogData, cfg.S3.SongData)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", res)
}

// Report prints the last saved run report.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.config(cmd)
	if err != nil {
		return err
	}
	if cfg.Report.URI == "" {
		return fmt.Errorf("invalid configuration: REPORT URI is required")
	}

	store, err := r.reportStore(ctx, cfg)
	if err != nil {
		return err
	}
	rep, err := store.Load(ctx)
	if errors.Is(err, report.ErrNoReport) {
		return fmt.Errorf("no run has been recorded at %s", cfg.Report.URI)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return r.writePlain("%s\n", data)
	}
	return r.writePlain("%s\n", rep)
}
