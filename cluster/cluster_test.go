package cluster

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	rstypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	json "github.com/goccy/go-json"
	"github.com/gurre/redshift-dwh/config"
	"github.com/gurre/redshift-dwh/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider implements the IAM, Redshift and EC2 clients and records the
// order of calls.
type fakeProvider struct {
	calls []string

	clusterStatus string
	deleteStatus  string
	createStatus  string
	vpcID         string
	groupID       string
	ingressOK     bool
	failOn        map[string]error

	createRoleInput    *iam.CreateRoleInput
	createClusterInput *redshift.CreateClusterInput
	authorizeInput     *ec2.AuthorizeSecurityGroupIngressInput
	revokeInput        *ec2.RevokeSecurityGroupIngressInput
	sgFilters          []ec2types.Filter
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		clusterStatus: StatusAvailable,
		deleteStatus:  StatusDeleting,
		createStatus:  StatusCreating,
		vpcID:         "vpc-123",
		groupID:       "sg-default",
		ingressOK:     true,
		failOn:        map[string]error{},
	}
}

func (f *fakeProvider) record(op string) error {
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeProvider) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if err := f.record("CreateRole"); err != nil {
		return nil, err
	}
	f.createRoleInput = params
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{
		RoleName: params.RoleName,
		Arn:      sdkaws.String("arn:aws:iam::123456789012:role/" + sdkaws.ToString(params.RoleName)),
	}}, nil
}

func (f *fakeProvider) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if err := f.record("GetRole"); err != nil {
		return nil, err
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{
		RoleName: params.RoleName,
		Arn:      sdkaws.String("arn:aws:iam::123456789012:role/" + sdkaws.ToString(params.RoleName)),
	}}, nil
}

func (f *fakeProvider) DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	if err := f.record("DeleteRole"); err != nil {
		return nil, err
	}
	return &iam.DeleteRoleOutput{}, nil
}

func (f *fakeProvider) AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	if err := f.record("AttachRolePolicy"); err != nil {
		return nil, err
	}
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeProvider) DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	if err := f.record("DetachRolePolicy"); err != nil {
		return nil, err
	}
	return &iam.DetachRolePolicyOutput{}, nil
}

func (f *fakeProvider) CreateCluster(ctx context.Context, params *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error) {
	if err := f.record("CreateCluster"); err != nil {
		return nil, err
	}
	f.createClusterInput = params
	return &redshift.CreateClusterOutput{Cluster: &rstypes.Cluster{
		ClusterIdentifier: params.ClusterIdentifier,
		ClusterStatus:     sdkaws.String(f.createStatus),
	}}, nil
}

func (f *fakeProvider) DeleteCluster(ctx context.Context, params *redshift.DeleteClusterInput, optFns ...func(*redshift.Options)) (*redshift.DeleteClusterOutput, error) {
	if err := f.record("DeleteCluster"); err != nil {
		return nil, err
	}
	return &redshift.DeleteClusterOutput{Cluster: &rstypes.Cluster{
		ClusterIdentifier: params.ClusterIdentifier,
		ClusterStatus:     sdkaws.String(f.deleteStatus),
	}}, nil
}

func (f *fakeProvider) DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	if err := f.record("DescribeClusters"); err != nil {
		return nil, err
	}
	return &redshift.DescribeClustersOutput{Clusters: []rstypes.Cluster{{
		ClusterIdentifier: params.ClusterIdentifier,
		ClusterStatus:     sdkaws.String(f.clusterStatus),
		VpcId:             sdkaws.String(f.vpcID),
		Endpoint: &rstypes.Endpoint{
			Address: sdkaws.String("dwh.abc123.us-west-2.redshift.amazonaws.com"),
			Port:    sdkaws.Int32(5439),
		},
	}}}, nil
}

func (f *fakeProvider) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if err := f.record("DescribeSecurityGroups"); err != nil {
		return nil, err
	}
	f.sgFilters = params.Filters
	if f.groupID == "" {
		return &ec2.DescribeSecurityGroupsOutput{}, nil
	}
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: []ec2types.SecurityGroup{{
		GroupId:   sdkaws.String(f.groupID),
		GroupName: sdkaws.String("default"),
		VpcId:     sdkaws.String(f.vpcID),
	}}}, nil
}

func (f *fakeProvider) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	if err := f.record("AuthorizeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	f.authorizeInput = params
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: sdkaws.Bool(f.ingressOK)}, nil
}

func (f *fakeProvider) RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	if err := f.record("RevokeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	f.revokeInput = params
	return &ec2.RevokeSecurityGroupIngressOutput{Return: sdkaws.Bool(f.ingressOK)}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		IAMRole: config.IAMRole{
			RoleName:    "dwhRole",
			S3PolicyARN: "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess",
		},
		Cluster: config.Cluster{
			ClusterType:   "multi-node",
			NodeType:      "dc2.large",
			NumberOfNodes: 4,
			DBName:        "dwh",
			Identifier:    "dwhCluster",
			DBUser:        "dwhuser",
			DBPassword:    "Passw0rd",
			DBPort:        5439,
		},
	}
}

func newTestLifecycle(f *fakeProvider, cfg *config.Config) (*Lifecycle, *bytes.Buffer) {
	var out bytes.Buffer
	mgr := NewManager(cfg, f, f, f)
	return NewLifecycle(mgr, logging.Discard(), &out), &out
}

func TestTrustPolicy(t *testing.T) {
	policy, err := TrustPolicy(RedshiftService)
	require.NoError(t, err)

	var doc PolicyDocument
	require.NoError(t, json.Unmarshal([]byte(policy), &doc))
	assert.Equal(t, "2012-10-17", doc.Version)
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, "sts:AssumeRole", doc.Statement[0].Action)
	assert.Equal(t, "Allow", doc.Statement[0].Effect)
	assert.Equal(t, "redshift.amazonaws.com", doc.Statement[0].Principal.Service)
}

func TestOutcome(t *testing.T) {
	ok := Ok()
	assert.True(t, ok.IsOk())
	assert.NoError(t, ok.Err())
	assert.Equal(t, "ok", ok.String())

	failed := Failed("status %d", 500)
	assert.False(t, failed.IsOk())
	assert.Equal(t, "status 500", failed.Reason())
	assert.ErrorIs(t, failed.Err(), ErrOutcome)
	assert.Equal(t, "failed: status 500", failed.String())

	assert.True(t, stateOutcome("DeleteCluster", StatusDeleting, StatusDeleting).IsOk())
	assert.False(t, stateOutcome("DeleteCluster", StatusDeleting, StatusAvailable).IsOk())
}

func TestSetup(t *testing.T) {
	f := newFakeProvider()
	lc, out := newTestLifecycle(f, testConfig())

	require.NoError(t, lc.Setup(context.Background()))
	assert.Equal(t, []string{"CreateRole", "AttachRolePolicy", "CreateCluster"}, f.calls)

	assert.Equal(t, "/", sdkaws.ToString(f.createRoleInput.Path))
	assert.Contains(t, sdkaws.ToString(f.createRoleInput.AssumeRolePolicyDocument), RedshiftService)

	in := f.createClusterInput
	require.NotNil(t, in)
	assert.Equal(t, []string{"arn:aws:iam::123456789012:role/dwhRole"}, in.IamRoles)
	assert.Equal(t, int32(4), sdkaws.ToInt32(in.NumberOfNodes))
	assert.Equal(t, "dwhuser", sdkaws.ToString(in.MasterUsername))
	assert.Equal(t, int32(5439), sdkaws.ToInt32(in.Port))
	assert.Contains(t, out.String(), "arn:aws:iam::123456789012:role/dwhRole")
}

func TestSetupSingleNodeOmitsNodeCount(t *testing.T) {
	cfg := testConfig()
	cfg.Cluster.ClusterType = "single-node"
	f := newFakeProvider()
	lc, _ := newTestLifecycle(f, cfg)

	require.NoError(t, lc.Setup(context.Background()))
	assert.Nil(t, f.createClusterInput.NumberOfNodes)
}

func TestSetupAbortsOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		configure func(f *fakeProvider)
		wantCalls []string
		wantErr   error
	}{
		{
			name: "role already exists",
			configure: func(f *fakeProvider) {
				f.failOn["CreateRole"] = &iamtypes.EntityAlreadyExistsException{Message: sdkaws.String("exists")}
			},
			wantCalls: []string{"CreateRole"},
		},
		{
			name: "attach fails",
			configure: func(f *fakeProvider) {
				f.failOn["AttachRolePolicy"] = errors.New("access denied")
			},
			wantCalls: []string{"CreateRole", "AttachRolePolicy"},
		},
		{
			name: "cluster not creating",
			configure: func(f *fakeProvider) {
				f.createStatus = "incompatible-parameters"
			},
			wantCalls: []string{"CreateRole", "AttachRolePolicy", "CreateCluster"},
			wantErr:   ErrOutcome,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeProvider()
			tt.configure(f)
			lc, _ := newTestLifecycle(f, testConfig())

			err := lc.Setup(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCalls, f.calls)
		})
	}
}

func TestTeardownOrder(t *testing.T) {
	f := newFakeProvider()
	lc, _ := newTestLifecycle(f, testConfig())

	require.NoError(t, lc.Teardown(context.Background()))

	// Ingress lookups go through the cluster's VPC first.
	want := []string{
		"DescribeClusters", "DescribeSecurityGroups", "RevokeSecurityGroupIngress",
		"DeleteCluster",
		"DetachRolePolicy",
		"DeleteRole",
	}
	assert.Equal(t, want, f.calls)
}

func TestTeardownStopsBeforeRoleWhenClusterDeleteFails(t *testing.T) {
	f := newFakeProvider()
	f.deleteStatus = StatusAvailable
	lc, _ := newTestLifecycle(f, testConfig())

	err := lc.Teardown(context.Background())
	require.ErrorIs(t, err, ErrOutcome)
	assert.NotContains(t, f.calls, "DetachRolePolicy")
	assert.NotContains(t, f.calls, "DeleteRole")
}

func TestIngressRule(t *testing.T) {
	f := newFakeProvider()
	mgr := NewManager(testConfig(), f, f, f)

	outcome, err := mgr.OpenIngress(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.IsOk())

	in := f.authorizeInput
	require.NotNil(t, in)
	assert.Equal(t, "sg-default", sdkaws.ToString(in.GroupId))
	assert.Equal(t, "0.0.0.0/0", sdkaws.ToString(in.CidrIp))
	assert.Equal(t, "tcp", sdkaws.ToString(in.IpProtocol))
	assert.Equal(t, int32(5439), sdkaws.ToInt32(in.FromPort))
	assert.Equal(t, int32(5439), sdkaws.ToInt32(in.ToPort))

	require.Len(t, f.sgFilters, 2)
	assert.Equal(t, []string{"vpc-123"}, f.sgFilters[0].Values)
	assert.Equal(t, []string{"default"}, f.sgFilters[1].Values)
}

func TestOpenPortSwallowsErrors(t *testing.T) {
	tests := []struct {
		name      string
		configure func(f *fakeProvider)
	}{
		{
			name: "rule already exists",
			configure: func(f *fakeProvider) {
				f.failOn["AuthorizeSecurityGroupIngress"] = errors.New("InvalidPermission.Duplicate")
			},
		},
		{
			name:      "no default group",
			configure: func(f *fakeProvider) { f.groupID = "" },
		},
		{
			name:      "not confirmed",
			configure: func(f *fakeProvider) { f.ingressOK = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeProvider()
			tt.configure(f)
			lc, _ := newTestLifecycle(f, testConfig())

			outcome := lc.OpenPort(context.Background())
			assert.False(t, outcome.IsOk())
			assert.NotEmpty(t, outcome.Reason())
		})
	}
}

func TestClosePortRequiresDefaultGroup(t *testing.T) {
	f := newFakeProvider()
	f.groupID = ""
	lc, _ := newTestLifecycle(f, testConfig())

	err := lc.ClosePort(context.Background())
	assert.ErrorIs(t, err, ErrNoSecurityGroup)
	assert.NotContains(t, f.calls, "RevokeSecurityGroupIngress")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		wantHost string
	}{
		{name: "available shows host", status: StatusAvailable, wantHost: "Host: dwh.abc123.us-west-2.redshift.amazonaws.com"},
		{name: "creating hides host", status: StatusCreating, wantHost: "Host: \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeProvider()
			f.clusterStatus = tt.status
			lc, out := newTestLifecycle(f, testConfig())

			require.NoError(t, lc.Status(context.Background(), 0))
			assert.Contains(t, out.String(), "Status: "+tt.status)
			assert.Contains(t, out.String(), tt.wantHost)
			assert.Equal(t, []string{"DescribeClusters"}, f.calls)
		})
	}
}

func TestStatusWait(t *testing.T) {
	f := newFakeProvider()
	lc, out := newTestLifecycle(f, testConfig())

	require.NoError(t, lc.Status(context.Background(), time.Minute))
	assert.Contains(t, out.String(), "Status: available")
	// One poll by the waiter, one describe for the endpoint.
	assert.Equal(t, []string{"DescribeClusters", "DescribeClusters"}, f.calls)
}

func TestDescribeClusterNotFound(t *testing.T) {
	f := &emptyRedshift{fakeProvider: newFakeProvider()}
	mgr := NewManager(testConfig(), f, f, f)

	_, err := mgr.DescribeCluster(context.Background())
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestRoleInfo(t *testing.T) {
	f := newFakeProvider()
	lc, out := newTestLifecycle(f, testConfig())

	require.NoError(t, lc.RoleInfo(context.Background()))
	assert.Equal(t, "Role: dwhRole\nARN: arn:aws:iam::123456789012:role/dwhRole\n", out.String())
}

type emptyRedshift struct {
	*fakeProvider
}

func (e *emptyRedshift) DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	return &redshift.DescribeClustersOutput{}, nil
}
