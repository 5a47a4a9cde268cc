package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gurre/redshift-dwh/config"
	"github.com/gurre/redshift-dwh/integration/mock"
	"github.com/gurre/redshift-dwh/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	cfg    *config.Config
	cloud  *mock.Cloud
	s3     *mock.S3Client
	wh     *mock.Warehouse
	out    *bytes.Buffer
	runner *Runner

	credentialsPath, settingsPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cfg: &config.Config{
			Credentials: config.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", Region: "us-west-2"},
			IAMRole: config.IAMRole{
				RoleName:    "dwhRole",
				S3PolicyARN: "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess",
			},
			Cluster: config.Cluster{
				Host:          "dwhcluster.abc123xyz789.us-west-2.redshift.amazonaws.com",
				ClusterType:   "single-node",
				NodeType:      "dc2.large",
				NumberOfNodes: 1,
				DBName:        "dwh",
				Identifier:    "dwhCluster",
				DBUser:        "dwhuser",
				DBPassword:    "Passw0rd",
				DBPort:        5439,
			},
			S3: config.S3{
				LogData:  "s3://udacity-dend/log_data",
				SongData: "s3://udacity-dend/song_data",
			},
		},
		cloud: mock.NewCloud(),
		s3:    mock.NewS3Client(),
		wh:    mock.NewWarehouse(),
		out:   &bytes.Buffer{},
	}

	h.runner = NewRunner(RunnerOpts{
		Logger: logging.Discard(),
		Output: h.out,
		LoadConfig: func(credentialsPath, settingsPath string) (*config.Config, error) {
			h.credentialsPath, h.settingsPath = credentialsPath, settingsPath
			return h.cfg, nil
		},
		Providers: func(ctx context.Context, creds config.Credentials) (*Providers, error) {
			return &Providers{IAM: h.cloud, Redshift: h.cloud, EC2: h.cloud, S3: h.s3, Streamer: h.s3}, nil
		},
		Connect: func(ctx context.Context, dsn string) (Warehouse, error) {
			return h.wh, nil
		},
	})
	return h
}

func (h *harness) run(args ...string) error {
	return newApp(h.runner).Run(context.Background(), append([]string{"dwh"}, args...))
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(RunnerOpts{})
	assert.NotNil(t, r.logger)
	assert.Equal(t, os.Stdout, r.output)
	assert.NotNil(t, r.loadConfig)
	assert.NotNil(t, r.providers)
	assert.NotNil(t, r.connect)
}

func TestConfigPathsFromFlags(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("setup"))
	require.NoError(t, h.run("--credentials", "/etc/dwh/creds.cfg", "--config", "/etc/dwh/dwh.cfg", "roleinfo"))
	assert.Contains(t, h.out.String(), "arn:aws:iam::123456789012:role/dwhRole")
	assert.Equal(t, "/etc/dwh/creds.cfg", h.credentialsPath)
	assert.Equal(t, "/etc/dwh/dwh.cfg", h.settingsPath)
}

func TestConfigPathDefaults(t *testing.T) {
	h := newHarness(t)
	// roleinfo fails since no role exists yet, but the configuration was read.
	require.Error(t, h.run("roleinfo"))
	assert.Equal(t, config.DefaultCredentialsPath, h.credentialsPath)
	assert.Equal(t, config.DefaultSettingsPath, h.settingsPath)
}

func TestUsage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run())
	assert.Contains(t, h.out.String(), "USAGE:")
	assert.Contains(t, h.out.String(), "setup")
	assert.Empty(t, h.credentialsPath)

	h.out.Reset()
	err := h.run("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "bogus"`)
	assert.Contains(t, h.out.String(), "USAGE:")
	assert.Contains(t, h.out.String(), "createtables")
}

func TestLoadConfigError(t *testing.T) {
	h := newHarness(t)
	h.runner.loadConfig = func(string, string) (*config.Config, error) {
		return nil, config.ErrMissingConfig
	}
	err := h.run("status")
	assert.ErrorIs(t, err, config.ErrMissingConfig)
}

func TestClusterCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("setup"))
	assert.Contains(t, h.out.String(), "Role ARN: arn:aws:iam::123456789012:role/dwhRole")
	assert.Equal(t, "creating", h.cloud.ClusterStatus("dwhCluster"))

	h.out.Reset()
	require.NoError(t, h.run("status", "--wait", "1m"))
	assert.Contains(t, h.out.String(), "Status: available\n")

	h.out.Reset()
	require.NoError(t, h.run("roleinfo"))
	assert.Equal(t, "Role: dwhRole\nARN: arn:aws:iam::123456789012:role/dwhRole\n", h.out.String())

	require.NoError(t, h.run("openport"))
	assert.Equal(t, 1, h.cloud.IngressRules())

	// The duplicate rule is logged, not returned.
	require.NoError(t, h.run("openport"))

	require.NoError(t, h.run("closeport"))
	assert.Equal(t, 0, h.cloud.IngressRules())

	require.NoError(t, h.run("openport"))
	require.NoError(t, h.run("teardown"))
	assert.False(t, h.cloud.HasRole("dwhRole"))
	assert.Empty(t, h.cloud.ClusterStatus("dwhCluster"))
}

func TestClusterCommandsValidateConfig(t *testing.T) {
	h := newHarness(t)
	h.cfg.IAMRole.RoleName = ""

	err := h.run("setup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROLE_NAME")
	assert.Empty(t, h.cloud.Calls)
}

func TestCreateTablesAndReport(t *testing.T) {
	h := newHarness(t)
	h.cfg.Report.URI = "file://" + filepath.Join(t.TempDir(), "reports", "last-run.json")

	require.NoError(t, h.run("createtables"))
	assert.Len(t, h.wh.Committed, 14)
	assert.True(t, h.wh.Closed)
	assert.Contains(t, h.out.String(), "Tables successfully created")

	h.out.Reset()
	require.NoError(t, h.run("report"))
	assert.Contains(t, h.out.String(), "createtables completed")

	h.out.Reset()
	require.NoError(t, h.run("report", "--json"))
	assert.Contains(t, h.out.String(), `"procedure": "createtables"`)
}

func TestReportRequiresURI(t *testing.T) {
	h := newHarness(t)
	err := h.run("report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPORT URI")
}

func TestReportMissing(t *testing.T) {
	h := newHarness(t)
	h.cfg.Report.URI = "s3://dwh-reports/last-run.json"
	err := h.run("report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run has been recorded")
}

func TestETL(t *testing.T) {
	h := newHarness(t)

	err := h.run("etl")
	require.Error(t, err, "ROLE_ARN is unset")
	assert.Contains(t, err.Error(), "ROLE_ARN")
	assert.Empty(t, h.wh.Committed)

	h.cfg.IAMRole.RoleARN = "arn:aws:iam::123456789012:role/dwhRole"
	h.cfg.Report.URI = "s3://dwh-reports/last-run.json"
	require.NoError(t, h.run("etl"))
	assert.Len(t, h.wh.Committed, 7)
	assert.Contains(t, h.out.String(), "ETL process finished")

	_, saved := h.s3.Object("dwh-reports", "last-run.json")
	assert.True(t, saved)
}

func TestETLStatementFailure(t *testing.T) {
	h := newHarness(t)
	h.cfg.IAMRole.RoleARN = "arn:aws:iam::123456789012:role/dwhRole"
	h.wh.FailOn = "COPY staging_songs"

	err := h.run("etl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging_songs_copy")
	assert.Len(t, h.wh.Committed, 1)
	assert.True(t, h.wh.Closed)
}

func TestConnectFailure(t *testing.T) {
	h := newHarness(t)
	h.runner.connect = func(ctx context.Context, dsn string) (Warehouse, error) {
		return nil, errors.New("connection refused")
	}
	err := h.run("createtables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to warehouse")
}

func TestSourcesAndPreview(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s3.LoadDir("udacity-dend", filepath.Join("..", "..", "integration", "testdata", "udacity-dend")))

	require.NoError(t, h.run("sources", "--sample", "1"))
	assert.Contains(t, h.out.String(), "s3://udacity-dend/song_data: 3 objects")
	assert.Contains(t, h.out.String(), "  log_data/2018/11/2018-11-01-events.json")

	h.out.Reset()
	require.NoError(t, h.run("preview"))
	assert.Contains(t, h.out.String(), "songplays: 4 rows")
	assert.Contains(t, h.out.String(), "users: 2 rows")
}
