// Package aws defines the narrow AWS service surfaces the warehouse tooling
// calls. Each interface lists only the operations in use so tests can supply
// hand-written fakes.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// IAMClient covers the role and policy operations used to grant the cluster
// read access to object storage.
type IAMClient interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
}

// RedshiftClient covers cluster creation, deletion and status queries.
// It also satisfies redshift.DescribeClustersAPIClient so the SDK waiters
// accept it.
type RedshiftClient interface {
	CreateCluster(ctx context.Context, params *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error)
	DeleteCluster(ctx context.Context, params *redshift.DeleteClusterInput, optFns ...func(*redshift.Options)) (*redshift.DeleteClusterOutput, error)
	DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
}

// EC2Client covers the security group lookups and ingress rule changes for
// the cluster's VPC.
type EC2Client interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error)
}

// S3Client covers listing the raw datasets and reading and writing run reports.
type S3Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Compile-time interface checks to ensure implementations satisfy interfaces
var (
	_ IAMClient      = (*IAMClientImpl)(nil)
	_ RedshiftClient = (*RedshiftClientImpl)(nil)
	_ EC2Client      = (*EC2ClientImpl)(nil)
	_ S3Client       = (*S3ClientImpl)(nil)

	_ redshift.DescribeClustersAPIClient = (RedshiftClient)(nil)
	_ s3.ListObjectsV2APIClient          = (S3Client)(nil)

	// AWS SDK interface checks to ensure SDK clients satisfy interfaces
	_ IAMClient      = (*iam.Client)(nil)
	_ RedshiftClient = (*redshift.Client)(nil)
	_ EC2Client      = (*ec2.Client)(nil)
	_ S3Client       = (*s3.Client)(nil)
)
