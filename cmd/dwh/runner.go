package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gurre/redshift-dwh/aws"
	"github.com/gurre/redshift-dwh/cluster"
	"github.com/gurre/redshift-dwh/config"
	"github.com/gurre/redshift-dwh/logging"
	"github.com/gurre/redshift-dwh/pipeline"
	"github.com/gurre/redshift-dwh/report"
	"github.com/gurre/redshift-dwh/warehouse"
	"github.com/gurre/s3streamer"
	"github.com/urfave/cli/v3"
)

// Providers are the cloud clients a command talks to.
type Providers struct {
	IAM      aws.IAMClient
	Redshift aws.RedshiftClient
	EC2      aws.EC2Client
	S3       aws.S3Client
	Streamer s3streamer.Streamer
}

// Warehouse is the SQL session the pipeline commands run on.
type Warehouse interface {
	pipeline.Session
	Close(ctx context.Context) error
}

// Runner holds the dependencies shared by every command and provides one
// method per command action.
type Runner struct {
	logger     *log.Logger
	output     io.Writer
	loadConfig func(credentialsPath, settingsPath string) (*config.Config, error)
	providers  func(ctx context.Context, creds config.Credentials) (*Providers, error)
	connect    func(ctx context.Context, dsn string) (Warehouse, error)
}

// RunnerOpts contains configuration options for creating a Runner. Nil fields
// fall back to the real implementations.
type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	LoadConfig func(credentialsPath, settingsPath string) (*config.Config, error)
	Providers  func(ctx context.Context, creds config.Credentials) (*Providers, error)
	Connect    func(ctx context.Context, dsn string) (Warehouse, error)
}

// NewRunner creates a new Runner with the provided options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(nil, false)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.Providers == nil {
		opts.Providers = awsProviders
	}
	if opts.Connect == nil {
		opts.Connect = connectWarehouse
	}

	return &Runner{
		logger:     opts.Logger,
		output:     opts.Output,
		loadConfig: opts.LoadConfig,
		providers:  opts.Providers,
		connect:    opts.Connect,
	}
}

func awsProviders(ctx context.Context, creds config.Credentials) (*Providers, error) {
	awsCfg, err := aws.LoadConfig(ctx, aws.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		Region:          creds.Region,
	})
	if err != nil {
		return nil, err
	}

	clients := aws.NewClients(awsCfg)
	return &Providers{
		IAM:      clients.IAM,
		Redshift: clients.Redshift,
		EC2:      clients.EC2,
		S3:       clients.S3,
		Streamer: s3streamer.NewS3Streamer(clients.RawS3),
	}, nil
}

func connectWarehouse(ctx context.Context, dsn string) (Warehouse, error) {
	conn, err := warehouse.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, teardownCommand, statusCommand, openPortCommand, closePortCommand, roleInfoCommand,
		createTablesCommand, etlCommand, sourcesCommand, previewCommand, reportCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// config loads both configuration sources named by the global flags and
// applies the verbosity flag to the logger.
func (r *Runner) config(cmd *cli.Command) (*config.Config, error) {
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
		r.logger.SetReportCaller(true)
	}

	cfg, err := r.loadConfig(cmd.String("credentials"), cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// lifecycle builds the provisioning procedures for a validated configuration.
func (r *Runner) lifecycle(ctx context.Context, cmd *cli.Command) (*cluster.Lifecycle, error) {
	cfg, err := r.config(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateCluster(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := r.providers(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	mgr := cluster.NewManager(cfg, p.IAM, p.Redshift, p.EC2)
	return cluster.NewLifecycle(mgr, r.logger, r.output), nil
}

// reportStore returns nil when no report URI is configured.
func (r *Runner) reportStore(ctx context.Context, cfg *config.Config) (report.Store, error) {
	uri := cfg.Report.URI
	if uri == "" {
		return nil, nil
	}

	var client aws.S3Client
	if strings.HasPrefix(uri, "s3://") {
		p, err := r.providers(ctx, cfg.Credentials)
		if err != nil {
			return nil, err
		}
		client = p.S3
	}

	store, err := report.NewStore(client, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to create report store: %w", err)
	}
	return store, nil
}

// withPipeline opens one warehouse session, runs fn on it and closes it.
func (r *Runner) withPipeline(ctx context.Context, cfg *config.Config, fn func(*pipeline.Runner) error) (err error) {
	store, err := r.reportStore(ctx, cfg)
	if err != nil {
		return err
	}

	r.logger.Debug("Connecting to warehouse", "host", cfg.Cluster.Host, "port", cfg.Cluster.DBPort, "db", cfg.Cluster.DBName)
	conn, err := r.connect(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close warehouse session: %w", cerr)
		}
	}()

	return fn(pipeline.NewRunner(conn, store, r.logger, r.output))
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
