// Package cluster provisions and removes the warehouse infrastructure: the IAM
// role the cluster uses to read object storage, the Redshift cluster itself,
// and the ingress rule exposing its port.
//
// Manager performs one remote call per method and reports a typed Outcome.
// Lifecycle strings those calls into the setup and teardown procedures.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/gurre/redshift-dwh/aws"
	"github.com/gurre/redshift-dwh/config"
)

// Cluster states reported by the provider.
const (
	StatusCreating  = "creating"
	StatusAvailable = "available"
	StatusDeleting  = "deleting"
)

const (
	anyIPv4     = "0.0.0.0/0"
	tcpProtocol = "tcp"
)

var (
	// ErrClusterNotFound is returned when a describe call lists no cluster.
	ErrClusterNotFound = errors.New("cluster not found")
	// ErrNoSecurityGroup is returned when the cluster's VPC has no default group.
	ErrNoSecurityGroup = errors.New("default security group not found")
)

// Role is the display form of an IAM role.
type Role struct {
	Name string
	ARN  string
}

// Info is the display form of a cluster.
type Info struct {
	Identifier string
	Status     string
	VpcID      string
	Host       string // set only when the cluster is available
	Port       int32
}

// Manager performs single remote calls against IAM, Redshift and EC2.
type Manager struct {
	cfg      *config.Config
	iam      aws.IAMClient
	redshift aws.RedshiftClient
	ec2      aws.EC2Client
}

// NewManager creates a Manager for the role and cluster named in cfg.
func NewManager(cfg *config.Config, iamClient aws.IAMClient, redshiftClient aws.RedshiftClient, ec2Client aws.EC2Client) *Manager {
	return &Manager{
		cfg:      cfg,
		iam:      iamClient,
		redshift: redshiftClient,
		ec2:      ec2Client,
	}
}

// CreateRole creates the role the cluster assumes, trusting the Redshift
// service. It fails if the role already exists.
func (m *Manager) CreateRole(ctx context.Context) (Role, Outcome, error) {
	policy, err := TrustPolicy(RedshiftService)
	if err != nil {
		return Role{}, Outcome{}, err
	}

	out, err := m.iam.CreateRole(ctx, &iam.CreateRoleInput{
		Path:                     sdkaws.String("/"),
		RoleName:                 sdkaws.String(m.cfg.IAMRole.RoleName),
		Description:              sdkaws.String("Allow Redshift clusters to call AWS services"),
		AssumeRolePolicyDocument: sdkaws.String(policy),
	})
	if err != nil {
		return Role{}, Outcome{}, fmt.Errorf("failed to create role %s: %w", m.cfg.IAMRole.RoleName, err)
	}
	if out.Role == nil || sdkaws.ToString(out.Role.Arn) == "" {
		return Role{}, Failed("CreateRole returned no role ARN"), nil
	}

	role := Role{Name: sdkaws.ToString(out.Role.RoleName), ARN: sdkaws.ToString(out.Role.Arn)}
	return role, statusOutcome("CreateRole", out.ResultMetadata), nil
}

// AttachPolicy attaches the configured S3 policy to the role.
func (m *Manager) AttachPolicy(ctx context.Context) (Outcome, error) {
	out, err := m.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  sdkaws.String(m.cfg.IAMRole.RoleName),
		PolicyArn: sdkaws.String(m.cfg.IAMRole.S3PolicyARN),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to attach policy %s: %w", m.cfg.IAMRole.S3PolicyARN, err)
	}
	return statusOutcome("AttachRolePolicy", out.ResultMetadata), nil
}

// DetachPolicy detaches the configured S3 policy from the role.
func (m *Manager) DetachPolicy(ctx context.Context) (Outcome, error) {
	out, err := m.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  sdkaws.String(m.cfg.IAMRole.RoleName),
		PolicyArn: sdkaws.String(m.cfg.IAMRole.S3PolicyARN),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to detach policy %s: %w", m.cfg.IAMRole.S3PolicyARN, err)
	}
	return statusOutcome("DetachRolePolicy", out.ResultMetadata), nil
}

// DeleteRole deletes the role. Policies must be detached first.
func (m *Manager) DeleteRole(ctx context.Context) (Outcome, error) {
	out, err := m.iam.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: sdkaws.String(m.cfg.IAMRole.RoleName),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to delete role %s: %w", m.cfg.IAMRole.RoleName, err)
	}
	return statusOutcome("DeleteRole", out.ResultMetadata), nil
}

// DescribeRole looks up the role name and ARN.
func (m *Manager) DescribeRole(ctx context.Context) (Role, error) {
	out, err := m.iam.GetRole(ctx, &iam.GetRoleInput{
		RoleName: sdkaws.String(m.cfg.IAMRole.RoleName),
	})
	if err != nil {
		return Role{}, fmt.Errorf("failed to get role %s: %w", m.cfg.IAMRole.RoleName, err)
	}
	if out.Role == nil {
		return Role{}, fmt.Errorf("role %s: empty response", m.cfg.IAMRole.RoleName)
	}
	return Role{Name: sdkaws.ToString(out.Role.RoleName), ARN: sdkaws.ToString(out.Role.Arn)}, nil
}

// CreateCluster requests a new cluster that assumes roleARN. The call returns
// once the request is accepted; the cluster is then in the creating state.
func (m *Manager) CreateCluster(ctx context.Context, roleARN string) (Info, Outcome, error) {
	c := m.cfg.Cluster
	input := &redshift.CreateClusterInput{
		ClusterType:        sdkaws.String(c.ClusterType),
		NodeType:           sdkaws.String(c.NodeType),
		DBName:             sdkaws.String(c.DBName),
		ClusterIdentifier:  sdkaws.String(c.Identifier),
		MasterUsername:     sdkaws.String(c.DBUser),
		MasterUserPassword: sdkaws.String(c.DBPassword),
		Port:               sdkaws.Int32(int32(c.DBPort)),
		IamRoles:           []string{roleARN},
	}
	// The API rejects a node count for single-node clusters.
	if c.ClusterType == "multi-node" {
		input.NumberOfNodes = sdkaws.Int32(int32(c.NumberOfNodes))
	}

	out, err := m.redshift.CreateCluster(ctx, input)
	if err != nil {
		return Info{}, Outcome{}, fmt.Errorf("failed to create cluster %s: %w", c.Identifier, err)
	}
	if out.Cluster == nil {
		return Info{}, Failed("CreateCluster returned no cluster"), nil
	}

	info := infoFromCluster(out.Cluster.ClusterIdentifier, out.Cluster.ClusterStatus, out.Cluster.VpcId)
	return info, stateOutcome("CreateCluster", StatusCreating, info.Status), nil
}

// DeleteCluster requests deletion without a final snapshot. The cluster is
// then in the deleting state.
func (m *Manager) DeleteCluster(ctx context.Context) (Info, Outcome, error) {
	out, err := m.redshift.DeleteCluster(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        sdkaws.String(m.cfg.Cluster.Identifier),
		SkipFinalClusterSnapshot: sdkaws.Bool(true),
	})
	if err != nil {
		return Info{}, Outcome{}, fmt.Errorf("failed to delete cluster %s: %w", m.cfg.Cluster.Identifier, err)
	}
	if out.Cluster == nil {
		return Info{}, Failed("DeleteCluster returned no cluster"), nil
	}

	info := infoFromCluster(out.Cluster.ClusterIdentifier, out.Cluster.ClusterStatus, out.Cluster.VpcId)
	return info, stateOutcome("DeleteCluster", StatusDeleting, info.Status), nil
}

// DescribeCluster reports the cluster status and, once available, its host.
func (m *Manager) DescribeCluster(ctx context.Context) (Info, error) {
	out, err := m.redshift.DescribeClusters(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: sdkaws.String(m.cfg.Cluster.Identifier),
	})
	if err != nil {
		return Info{}, fmt.Errorf("failed to describe cluster %s: %w", m.cfg.Cluster.Identifier, err)
	}
	if len(out.Clusters) == 0 {
		return Info{}, fmt.Errorf("%w: %s", ErrClusterNotFound, m.cfg.Cluster.Identifier)
	}

	c := out.Clusters[0]
	info := infoFromCluster(c.ClusterIdentifier, c.ClusterStatus, c.VpcId)
	if info.Status == StatusAvailable && c.Endpoint != nil {
		info.Host = sdkaws.ToString(c.Endpoint.Address)
		info.Port = sdkaws.ToInt32(c.Endpoint.Port)
	}
	return info, nil
}

// WaitAvailable blocks until the cluster is available or maxWait elapses.
func (m *Manager) WaitAvailable(ctx context.Context, maxWait time.Duration) (Info, error) {
	waiter := redshift.NewClusterAvailableWaiter(m.redshift)
	err := waiter.Wait(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: sdkaws.String(m.cfg.Cluster.Identifier),
	}, maxWait)
	if err != nil {
		return Info{}, fmt.Errorf("cluster %s did not become available: %w", m.cfg.Cluster.Identifier, err)
	}
	return m.DescribeCluster(ctx)
}

// OpenIngress allows TCP traffic from anywhere to the database port on the
// cluster VPC's default security group.
func (m *Manager) OpenIngress(ctx context.Context) (Outcome, error) {
	groupID, err := m.defaultSecurityGroup(ctx)
	if err != nil {
		return Outcome{}, err
	}

	port := int32(m.cfg.Cluster.DBPort)
	out, err := m.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:    sdkaws.String(groupID),
		CidrIp:     sdkaws.String(anyIPv4),
		IpProtocol: sdkaws.String(tcpProtocol),
		FromPort:   sdkaws.Int32(port),
		ToPort:     sdkaws.Int32(port),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to open port %d on %s: %w", port, groupID, err)
	}
	if !sdkaws.ToBool(out.Return) {
		return Failed("AuthorizeSecurityGroupIngress did not confirm port %d", port), nil
	}
	return Ok(), nil
}

// CloseIngress revokes the rule added by OpenIngress.
func (m *Manager) CloseIngress(ctx context.Context) (Outcome, error) {
	groupID, err := m.defaultSecurityGroup(ctx)
	if err != nil {
		return Outcome{}, err
	}

	port := int32(m.cfg.Cluster.DBPort)
	out, err := m.ec2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
		GroupId:    sdkaws.String(groupID),
		CidrIp:     sdkaws.String(anyIPv4),
		IpProtocol: sdkaws.String(tcpProtocol),
		FromPort:   sdkaws.Int32(port),
		ToPort:     sdkaws.Int32(port),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to close port %d on %s: %w", port, groupID, err)
	}
	if !sdkaws.ToBool(out.Return) {
		return Failed("RevokeSecurityGroupIngress did not confirm port %d", port), nil
	}
	return Ok(), nil
}

// defaultSecurityGroup resolves the ID of the default group in the cluster's VPC.
func (m *Manager) defaultSecurityGroup(ctx context.Context) (string, error) {
	info, err := m.DescribeCluster(ctx)
	if err != nil {
		return "", err
	}
	if info.VpcID == "" {
		return "", fmt.Errorf("%w: cluster %s reports no VPC", ErrNoSecurityGroup, info.Identifier)
	}

	out, err := m.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: sdkaws.String("vpc-id"), Values: []string{info.VpcID}},
			{Name: sdkaws.String("group-name"), Values: []string{"default"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe security groups for %s: %w", info.VpcID, err)
	}
	if len(out.SecurityGroups) == 0 {
		return "", fmt.Errorf("%w: vpc %s", ErrNoSecurityGroup, info.VpcID)
	}
	return sdkaws.ToString(out.SecurityGroups[0].GroupId), nil
}

func infoFromCluster(id, status, vpc *string) Info {
	return Info{
		Identifier: sdkaws.ToString(id),
		Status:     sdkaws.ToString(status),
		VpcID:      sdkaws.ToString(vpc),
	}
}
