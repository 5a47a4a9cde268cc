package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// IAMClientImpl implements IAMClient using the AWS SDK.
type IAMClientImpl struct {
	client *iam.Client
}

// NewIAMClient creates a new IAMClientImpl instance
func NewIAMClient(client *iam.Client) *IAMClientImpl {
	return &IAMClientImpl{client: client}
}

// CreateRole implements the IAMClient interface for role creation
func (c *IAMClientImpl) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	return c.client.CreateRole(ctx, params, optFns...)
}

// GetRole implements the IAMClient interface for role lookup
func (c *IAMClientImpl) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	return c.client.GetRole(ctx, params, optFns...)
}

// DeleteRole implements the IAMClient interface for role deletion
func (c *IAMClientImpl) DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	return c.client.DeleteRole(ctx, params, optFns...)
}

// AttachRolePolicy implements the IAMClient interface for attaching a managed policy
func (c *IAMClientImpl) AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	return c.client.AttachRolePolicy(ctx, params, optFns...)
}

// DetachRolePolicy implements the IAMClient interface for detaching a managed policy
func (c *IAMClientImpl) DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	return c.client.DetachRolePolicy(ctx, params, optFns...)
}

// RedshiftClientImpl implements RedshiftClient using the AWS SDK.
type RedshiftClientImpl struct {
	client *redshift.Client
}

// NewRedshiftClient creates a new RedshiftClientImpl instance
func NewRedshiftClient(client *redshift.Client) *RedshiftClientImpl {
	return &RedshiftClientImpl{client: client}
}

// CreateCluster implements the RedshiftClient interface
func (c *RedshiftClientImpl) CreateCluster(ctx context.Context, params *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error) {
	return c.client.CreateCluster(ctx, params, optFns...)
}

// DeleteCluster implements the RedshiftClient interface
func (c *RedshiftClientImpl) DeleteCluster(ctx context.Context, params *redshift.DeleteClusterInput, optFns ...func(*redshift.Options)) (*redshift.DeleteClusterOutput, error) {
	return c.client.DeleteCluster(ctx, params, optFns...)
}

// DescribeClusters implements the RedshiftClient interface
func (c *RedshiftClientImpl) DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	return c.client.DescribeClusters(ctx, params, optFns...)
}

// EC2ClientImpl implements EC2Client using the AWS SDK.
type EC2ClientImpl struct {
	client *ec2.Client
}

// NewEC2Client creates a new EC2ClientImpl instance
func NewEC2Client(client *ec2.Client) *EC2ClientImpl {
	return &EC2ClientImpl{client: client}
}

// DescribeSecurityGroups implements the EC2Client interface
func (c *EC2ClientImpl) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return c.client.DescribeSecurityGroups(ctx, params, optFns...)
}

// AuthorizeSecurityGroupIngress implements the EC2Client interface
func (c *EC2ClientImpl) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	return c.client.AuthorizeSecurityGroupIngress(ctx, params, optFns...)
}

// RevokeSecurityGroupIngress implements the EC2Client interface
func (c *EC2ClientImpl) RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	return c.client.RevokeSecurityGroupIngress(ctx, params, optFns...)
}

// S3ClientImpl implements S3Client using the AWS SDK.
type S3ClientImpl struct {
	client *s3.Client
}

// NewS3Client creates a new S3ClientImpl instance
func NewS3Client(client *s3.Client) *S3ClientImpl {
	return &S3ClientImpl{client: client}
}

// ListObjectsV2 implements the S3Client interface for listing a prefix
func (c *S3ClientImpl) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return c.client.ListObjectsV2(ctx, params, optFns...)
}

// GetObject implements the S3Client interface for reading objects
func (c *S3ClientImpl) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return c.client.GetObject(ctx, params, optFns...)
}

// PutObject implements the S3Client interface for writing objects
func (c *S3ClientImpl) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return c.client.PutObject(ctx, params, optFns...)
}
