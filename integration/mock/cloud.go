package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/aws/smithy-go"
)

const (
	// VpcID is the VPC every mock cluster is placed in.
	VpcID = "vpc-0a1b2c3d"
	// DefaultGroupID is the default security group of VpcID.
	DefaultGroupID = "sg-0d15ea5e"
	// AccountID appears in every role ARN.
	AccountID = "123456789012"
)

type role struct {
	name     string
	arn      string
	policies map[string]bool
}

type cluster struct {
	identifier string
	status     string
	port       int32
	describes  int
}

type ingressRule struct {
	group string
	cidr  string
	port  int32
}

// Cloud is a stateful mock of the IAM, Redshift and EC2 operations used to
// provision the warehouse. It keeps the same invariants the services enforce:
// role names are unique, a role with attached policies cannot be deleted, and
// ingress rules cannot be added twice or revoked when absent.
type Cloud struct {
	mu sync.Mutex

	roles    map[string]*role
	clusters map[string]*cluster
	rules    map[ingressRule]bool

	// PendingDescribes is the number of DescribeClusters calls that still
	// report a new cluster as creating.
	PendingDescribes int
	// Calls records operation names in call order.
	Calls []string
}

// NewCloud creates an empty account.
func NewCloud() *Cloud {
	return &Cloud{
		roles:    make(map[string]*role),
		clusters: make(map[string]*cluster),
		rules:    make(map[ingressRule]bool),
	}
}

func apiError(code, format string, args ...any) error {
	return &smithy.GenericAPIError{Code: code, Message: fmt.Sprintf(format, args...), Fault: smithy.FaultClient}
}

func (c *Cloud) record(op string) {
	c.Calls = append(c.Calls, op)
}

// HasRole reports whether the role exists.
func (c *Cloud) HasRole(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.roles[name]
	return ok
}

// AttachedPolicies returns the number of policies attached to a role.
func (c *Cloud) AttachedPolicies(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.roles[name]; ok {
		return len(r.policies)
	}
	return 0
}

// ClusterStatus returns the stored status, or "" if the cluster is gone.
func (c *Cloud) ClusterStatus(identifier string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clusters[identifier]; ok {
		return cl.status
	}
	return ""
}

// IngressRules returns the number of open ingress rules.
func (c *Cloud) IngressRules() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rules)
}

func (c *Cloud) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreateRole")

	name := aws.ToString(params.RoleName)
	if _, ok := c.roles[name]; ok {
		return nil, apiError("EntityAlreadyExists", "Role with name %s already exists.", name)
	}
	r := &role{
		name:     name,
		arn:      fmt.Sprintf("arn:aws:iam::%s:role/%s", AccountID, name),
		policies: make(map[string]bool),
	}
	c.roles[name] = r
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: aws.String(r.name), Arn: aws.String(r.arn)}}, nil
}

func (c *Cloud) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("GetRole")

	r, ok := c.roles[aws.ToString(params.RoleName)]
	if !ok {
		return nil, apiError("NoSuchEntity", "The role with name %s cannot be found.", aws.ToString(params.RoleName))
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: aws.String(r.name), Arn: aws.String(r.arn)}}, nil
}

func (c *Cloud) DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("DeleteRole")

	name := aws.ToString(params.RoleName)
	r, ok := c.roles[name]
	if !ok {
		return nil, apiError("NoSuchEntity", "The role with name %s cannot be found.", name)
	}
	if len(r.policies) > 0 {
		return nil, apiError("DeleteConflict", "Cannot delete entity, must detach all policies first.")
	}
	delete(c.roles, name)
	return &iam.DeleteRoleOutput{}, nil
}

func (c *Cloud) AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("AttachRolePolicy")

	r, ok := c.roles[aws.ToString(params.RoleName)]
	if !ok {
		return nil, apiError("NoSuchEntity", "The role with name %s cannot be found.", aws.ToString(params.RoleName))
	}
	r.policies[aws.ToString(params.PolicyArn)] = true
	return &iam.AttachRolePolicyOutput{}, nil
}

func (c *Cloud) DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("DetachRolePolicy")

	r, ok := c.roles[aws.ToString(params.RoleName)]
	if !ok {
		return nil, apiError("NoSuchEntity", "The role with name %s cannot be found.", aws.ToString(params.RoleName))
	}
	arn := aws.ToString(params.PolicyArn)
	if !r.policies[arn] {
		return nil, apiError("NoSuchEntity", "Policy %s was not found.", arn)
	}
	delete(r.policies, arn)
	return &iam.DetachRolePolicyOutput{}, nil
}

func (c *Cloud) CreateCluster(ctx context.Context, params *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreateCluster")

	id := aws.ToString(params.ClusterIdentifier)
	if _, ok := c.clusters[id]; ok {
		return nil, apiError("ClusterAlreadyExists", "Cluster already exists")
	}
	for _, arn := range params.IamRoles {
		found := false
		for _, r := range c.roles {
			found = found || r.arn == arn
		}
		if !found {
			return nil, apiError("InvalidParameterValue", "Role %s is not valid.", arn)
		}
	}
	cl := &cluster{identifier: id, status: "creating", port: aws.ToInt32(params.Port)}
	c.clusters[id] = cl
	return &redshift.CreateClusterOutput{Cluster: c.describe(cl)}, nil
}

func (c *Cloud) DeleteCluster(ctx context.Context, params *redshift.DeleteClusterInput, optFns ...func(*redshift.Options)) (*redshift.DeleteClusterOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("DeleteCluster")

	id := aws.ToString(params.ClusterIdentifier)
	cl, ok := c.clusters[id]
	if !ok {
		return nil, &redshifttypes.ClusterNotFoundFault{Message: aws.String(fmt.Sprintf("Cluster %s not found.", id))}
	}
	cl.status = "deleting"
	out := c.describe(cl)
	delete(c.clusters, id)
	return &redshift.DeleteClusterOutput{Cluster: out}, nil
}

func (c *Cloud) DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("DescribeClusters")

	id := aws.ToString(params.ClusterIdentifier)
	cl, ok := c.clusters[id]
	if !ok {
		return nil, &redshifttypes.ClusterNotFoundFault{Message: aws.String(fmt.Sprintf("Cluster %s not found.", id))}
	}
	if cl.status == "creating" {
		if cl.describes >= c.PendingDescribes {
			cl.status = "available"
		}
		cl.describes++
	}
	return &redshift.DescribeClustersOutput{Clusters: []redshifttypes.Cluster{*c.describe(cl)}}, nil
}

func (c *Cloud) describe(cl *cluster) *redshifttypes.Cluster {
	out := &redshifttypes.Cluster{
		ClusterIdentifier: aws.String(cl.identifier),
		ClusterStatus:     aws.String(cl.status),
		VpcId:             aws.String(VpcID),
	}
	if cl.status == "available" {
		out.Endpoint = &redshifttypes.Endpoint{
			Address: aws.String(fmt.Sprintf("%s.abc123xyz789.us-west-2.redshift.amazonaws.com", cl.identifier)),
			Port:    aws.Int32(cl.port),
		}
	}
	return out
}

func (c *Cloud) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("DescribeSecurityGroups")

	for _, f := range params.Filters {
		name := aws.ToString(f.Name)
		if name == "vpc-id" && (len(f.Values) != 1 || f.Values[0] != VpcID) {
			return &ec2.DescribeSecurityGroupsOutput{}, nil
		}
		if name == "group-name" && (len(f.Values) != 1 || f.Values[0] != "default") {
			return &ec2.DescribeSecurityGroupsOutput{}, nil
		}
	}
	return &ec2.DescribeSecurityGroupsOutput{
		SecurityGroups: []ec2types.SecurityGroup{{
			GroupId:   aws.String(DefaultGroupID),
			GroupName: aws.String("default"),
			VpcId:     aws.String(VpcID),
		}},
	}, nil
}

func (c *Cloud) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("AuthorizeSecurityGroupIngress")

	rule := ingressRule{group: aws.ToString(params.GroupId), cidr: aws.ToString(params.CidrIp), port: aws.ToInt32(params.FromPort)}
	if c.rules[rule] {
		return nil, apiError("InvalidPermission.Duplicate", "the specified rule already exists")
	}
	c.rules[rule] = true
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func (c *Cloud) RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("RevokeSecurityGroupIngress")

	rule := ingressRule{group: aws.ToString(params.GroupId), cidr: aws.ToString(params.CidrIp), port: aws.ToInt32(params.FromPort)}
	if !c.rules[rule] {
		return nil, apiError("InvalidPermission.NotFound", "the specified rule does not exist in this security group")
	}
	delete(c.rules, rule)
	return &ec2.RevokeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}
