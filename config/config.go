// Package config loads the settings shared by the cluster and pipeline commands.
// Credentials and operational settings live in two sectioned INI files; any key
// can be overridden from the environment as DWH_<SECTION>_<KEY>.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	// DefaultCredentialsPath is the credentials source read when no path is given.
	DefaultCredentialsPath = "aws_credentials.cfg"
	// DefaultSettingsPath is the operational settings source read when no path is given.
	DefaultSettingsPath = "dwh.cfg"

	envPrefix = "DWH"
)

// ErrMissingConfig is returned when a configuration source does not exist.
var ErrMissingConfig = errors.New("configuration not found")

// Credentials holds the [AWS] section of the credentials source.
type Credentials struct {
	AccessKeyID     string // KEY
	SecretAccessKey string // SECRET
	Region          string // REGION
}

// IAMRole holds the [IAM_ROLE] section.
type IAMRole struct {
	RoleName    string // ROLE_NAME
	RoleARN     string // ROLE_ARN, known only after setup
	S3PolicyARN string // S3_POLICY_ARN
}

// Cluster holds the [CLUSTER] section.
type Cluster struct {
	Host          string // HOST, known only once the cluster is available
	ClusterType   string
	NodeType      string
	NumberOfNodes int
	DBName        string
	Identifier    string
	DBUser        string
	DBPassword    string
	DBPort        int
}

// S3 holds the [S3] section: object storage paths for the raw datasets.
type S3 struct {
	LogData  string
	SongData string
}

// Report holds the optional [REPORT] section.
type Report struct {
	URI string // s3://bucket/key or file:///abs/path, empty disables persistence
}

// Config is the flattened view of both sources. It is built once per process
// and handed to each component.
type Config struct {
	Credentials Credentials
	IAMRole     IAMRole
	Cluster     Cluster
	S3          S3
	Report      Report
}

// Load reads the credentials and settings sources and applies environment
// overrides. A .env file in the working directory is loaded first if present.
func Load(credentialsPath, settingsPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, path := range []string{credentialsPath, settingsPath} {
		sections, err := readSections(path)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(sections); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

// readSections parses an INI file into a section -> key -> value map with
// lower-cased names, skipping the unnamed default section.
func readSections(path string) (map[string]any, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	sections := make(map[string]any)
	for _, sec := range file.Sections() {
		if strings.EqualFold(sec.Name(), ini.DefaultSection) {
			continue
		}
		keys := make(map[string]any, len(sec.Keys()))
		for _, k := range sec.Keys() {
			keys[k.Name()] = k.String()
		}
		sections[sec.Name()] = keys
	}
	return sections, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Credentials: Credentials{
			AccessKeyID:     v.GetString("aws.key"),
			SecretAccessKey: v.GetString("aws.secret"),
			Region:          v.GetString("aws.region"),
		},
		IAMRole: IAMRole{
			RoleName:    v.GetString("iam_role.role_name"),
			RoleARN:     v.GetString("iam_role.role_arn"),
			S3PolicyARN: v.GetString("iam_role.s3_policy_arn"),
		},
		Cluster: Cluster{
			Host:          v.GetString("cluster.host"),
			ClusterType:   v.GetString("cluster.cluster_type"),
			NodeType:      v.GetString("cluster.node_type"),
			NumberOfNodes: v.GetInt("cluster.number_of_nodes"),
			DBName:        v.GetString("cluster.db_name"),
			Identifier:    v.GetString("cluster.cluster_identifier"),
			DBUser:        v.GetString("cluster.db_user"),
			DBPassword:    v.GetString("cluster.db_password"),
			DBPort:        v.GetInt("cluster.db_port"),
		},
		S3: S3{
			LogData:  v.GetString("s3.log_data"),
			SongData: v.GetString("s3.song_data"),
		},
		Report: Report{
			URI: v.GetString("report.uri"),
		},
	}
}

// ValidateCluster checks the settings needed to provision and tear down the
// role, the cluster and its ingress rule.
func (c *Config) ValidateCluster() error {
	if c.Credentials.AccessKeyID == "" || c.Credentials.SecretAccessKey == "" {
		return fmt.Errorf("AWS KEY and SECRET are required")
	}
	if c.Credentials.Region == "" {
		return fmt.Errorf("AWS REGION is required")
	}
	if c.IAMRole.RoleName == "" {
		return fmt.Errorf("IAM_ROLE ROLE_NAME is required")
	}
	if c.IAMRole.S3PolicyARN == "" {
		return fmt.Errorf("IAM_ROLE S3_POLICY_ARN is required")
	}
	if c.Cluster.ClusterType == "" {
		return fmt.Errorf("CLUSTER CLUSTER_TYPE is required")
	}
	if c.Cluster.NodeType == "" {
		return fmt.Errorf("CLUSTER NODE_TYPE is required")
	}
	if c.Cluster.NumberOfNodes < 1 {
		return fmt.Errorf("CLUSTER NUMBER_OF_NODES must be a positive integer")
	}
	if c.Cluster.Identifier == "" {
		return fmt.Errorf("CLUSTER CLUSTER_IDENTIFIER is required")
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	return nil
}

// ValidateWarehouse checks the settings needed to open a SQL session.
func (c *Config) ValidateWarehouse() error {
	if c.Cluster.Host == "" {
		return fmt.Errorf("CLUSTER HOST is required")
	}
	return c.validateDatabase()
}

// ValidateLoad checks the settings needed by the COPY statements on top of
// the warehouse connection.
func (c *Config) ValidateLoad() error {
	if err := c.ValidateWarehouse(); err != nil {
		return err
	}
	if c.IAMRole.RoleARN == "" {
		return fmt.Errorf("IAM_ROLE ROLE_ARN is required")
	}
	return c.ValidateSources()
}

// ValidateSources checks the object storage paths.
func (c *Config) ValidateSources() error {
	if !strings.HasPrefix(c.S3.LogData, "s3://") {
		return fmt.Errorf("S3 LOG_DATA must start with s3://")
	}
	if !strings.HasPrefix(c.S3.SongData, "s3://") {
		return fmt.Errorf("S3 SONG_DATA must start with s3://")
	}
	if c.Report.URI != "" &&
		!strings.HasPrefix(c.Report.URI, "s3://") &&
		!strings.HasPrefix(c.Report.URI, "file://") {
		return fmt.Errorf("REPORT URI must start with s3:// or file://")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Cluster.DBName == "" {
		return fmt.Errorf("CLUSTER DB_NAME is required")
	}
	if c.Cluster.DBUser == "" {
		return fmt.Errorf("CLUSTER DB_USER is required")
	}
	if c.Cluster.DBPassword == "" {
		return fmt.Errorf("CLUSTER DB_PASSWORD is required")
	}
	if c.Cluster.DBPort < 1 || c.Cluster.DBPort > 65535 {
		return fmt.Errorf("CLUSTER DB_PORT must be between 1 and 65535")
	}
	return nil
}

// DSN returns the keyword/value connection string for the cluster database.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s dbname=%s user=%s password=%s port=%d",
		dsnValue(c.Cluster.Host),
		dsnValue(c.Cluster.DBName),
		dsnValue(c.Cluster.DBUser),
		dsnValue(c.Cluster.DBPassword),
		c.Cluster.DBPort,
	)
}

// dsnValue quotes a value when it contains characters the keyword/value
// format treats specially.
func dsnValue(s string) string {
	if s != "" && !strings.ContainsAny(s, ` '\`) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
