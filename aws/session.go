package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Credentials identifies the account and region every client talks to.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// LoadConfig builds an SDK configuration. Static credentials are used when
// both the key and secret are set; otherwise the default provider chain
// resolves them.
func LoadConfig(ctx context.Context, creds Credentials) (sdkaws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(creds.Region),
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return sdkaws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// Clients bundles one client per service.
type Clients struct {
	IAM      *IAMClientImpl
	Redshift *RedshiftClientImpl
	EC2      *EC2ClientImpl
	S3       *S3ClientImpl

	// RawS3 is kept for helpers that need the concrete SDK client.
	RawS3 *s3.Client
}

// NewClients creates every service client from one SDK configuration.
func NewClients(cfg sdkaws.Config) *Clients {
	rawS3 := s3.NewFromConfig(cfg)
	return &Clients{
		IAM:      NewIAMClient(iam.NewFromConfig(cfg)),
		Redshift: NewRedshiftClient(redshift.NewFromConfig(cfg)),
		EC2:      NewEC2Client(ec2.NewFromConfig(cfg)),
		S3:       NewS3Client(rawS3),
		RawS3:    rawS3,
	}
}
