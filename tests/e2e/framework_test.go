// Package e2e_test contains end-to-end workflow tests for the snapprof CLI.
//
// These tests drive the exported provision and benchmark packages through
// complete lifecycles against an in-memory AWS account. No real AWS calls
// are made. For non-AWS commands (version, config) the real
// cmd.NewRootCommand() is used directly.
package e2e_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/nicholasgasior/snapprof/cmd"
	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
	"github.com/nicholasgasior/snapprof/internal/benchmark"
)

const e2eAccount = "123456789012"

// ---------------------------------------------------------------------------
// In-memory IAM account
// ---------------------------------------------------------------------------

// account is a stateful IAM namespace. It enforces the same existence and
// dependency rules IAM does, so a second setup run sees EntityAlreadyExists
// and teardown must go in the right order.
type account struct {
	mu       sync.Mutex
	roles    map[string]bool
	policies map[string][]string // ARN -> version IDs, default first
	attached map[string]map[string]bool
	profiles map[string]string // profile -> role ("" when empty)
}

func newAccount() *account {
	return &account{
		roles:    map[string]bool{},
		policies: map[string][]string{},
		attached: map[string]map[string]bool{},
		profiles: map[string]string{},
	}
}

func alreadyExists(format string, args ...interface{}) error {
	return &iamtypes.EntityAlreadyExistsException{Message: aws.String(fmt.Sprintf(format, args...))}
}

func noSuchEntity(format string, args ...interface{}) error {
	return &iamtypes.NoSuchEntityException{Message: aws.String(fmt.Sprintf(format, args...))}
}

func conflict(format string, args ...interface{}) error {
	return &iamtypes.DeleteConflictException{Message: aws.String(fmt.Sprintf(format, args...))}
}

func (a *account) CreateRole(ctx context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := aws.ToString(in.RoleName)
	if a.roles[name] {
		return nil, alreadyExists("Role with name %s already exists.", name)
	}
	a.roles[name] = true
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{
		RoleName: in.RoleName,
		Arn:      aws.String("arn:aws:iam::" + e2eAccount + ":role/" + name),
	}}, nil
}

func (a *account) CreatePolicy(ctx context.Context, in *iam.CreatePolicyInput, _ ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	arn := "arn:aws:iam::" + e2eAccount + ":policy/" + aws.ToString(in.PolicyName)
	if _, ok := a.policies[arn]; ok {
		return nil, alreadyExists("A policy called %s already exists.", aws.ToString(in.PolicyName))
	}
	a.policies[arn] = []string{"v1"}
	return &iam.CreatePolicyOutput{Policy: &iamtypes.Policy{
		PolicyName:       in.PolicyName,
		Arn:              aws.String(arn),
		DefaultVersionId: aws.String("v1"),
	}}, nil
}

func (a *account) AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	role, arn := aws.ToString(in.RoleName), aws.ToString(in.PolicyArn)
	if !a.roles[role] {
		return nil, noSuchEntity("The role with name %s cannot be found.", role)
	}
	if _, ok := a.policies[arn]; !ok {
		return nil, noSuchEntity("Policy %s does not exist or is not attachable.", arn)
	}
	if a.attached[role] == nil {
		a.attached[role] = map[string]bool{}
	}
	a.attached[role][arn] = true
	return &iam.AttachRolePolicyOutput{}, nil
}

func (a *account) CreateInstanceProfile(ctx context.Context, in *iam.CreateInstanceProfileInput, _ ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := aws.ToString(in.InstanceProfileName)
	if _, ok := a.profiles[name]; ok {
		return nil, alreadyExists("Instance Profile %s already exists.", name)
	}
	a.profiles[name] = ""
	return &iam.CreateInstanceProfileOutput{InstanceProfile: &iamtypes.InstanceProfile{InstanceProfileName: in.InstanceProfileName}}, nil
}

func (a *account) AddRoleToInstanceProfile(ctx context.Context, in *iam.AddRoleToInstanceProfileInput, _ ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	profile, role := aws.ToString(in.InstanceProfileName), aws.ToString(in.RoleName)
	current, ok := a.profiles[profile]
	if !ok {
		return nil, noSuchEntity("Instance profile %s cannot be found.", profile)
	}
	if current != "" {
		return nil, &iamtypes.LimitExceededException{Message: aws.String("Cannot exceed quota for InstanceSessionsPerInstanceProfile: 1")}
	}
	a.profiles[profile] = role
	return &iam.AddRoleToInstanceProfileOutput{}, nil
}

func (a *account) RemoveRoleFromInstanceProfile(ctx context.Context, in *iam.RemoveRoleFromInstanceProfileInput, _ ...func(*iam.Options)) (*iam.RemoveRoleFromInstanceProfileOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	profile := aws.ToString(in.InstanceProfileName)
	if a.profiles[profile] != aws.ToString(in.RoleName) || a.profiles[profile] == "" {
		return nil, noSuchEntity("Role is not in instance profile %s.", profile)
	}
	a.profiles[profile] = ""
	return &iam.RemoveRoleFromInstanceProfileOutput{}, nil
}

func (a *account) DeleteInstanceProfile(ctx context.Context, in *iam.DeleteInstanceProfileInput, _ ...func(*iam.Options)) (*iam.DeleteInstanceProfileOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := aws.ToString(in.InstanceProfileName)
	role, ok := a.profiles[name]
	if !ok {
		return nil, noSuchEntity("Instance profile %s cannot be found.", name)
	}
	if role != "" {
		return nil, conflict("Cannot delete entity, must remove roles from instance profile first.")
	}
	delete(a.profiles, name)
	return &iam.DeleteInstanceProfileOutput{}, nil
}

func (a *account) DetachRolePolicy(ctx context.Context, in *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	role, arn := aws.ToString(in.RoleName), aws.ToString(in.PolicyArn)
	if !a.attached[role][arn] {
		return nil, noSuchEntity("Policy %s was not found.", arn)
	}
	delete(a.attached[role], arn)
	return &iam.DetachRolePolicyOutput{}, nil
}

func (a *account) ListPolicyVersions(ctx context.Context, in *iam.ListPolicyVersionsInput, _ ...func(*iam.Options)) (*iam.ListPolicyVersionsOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	arn := aws.ToString(in.PolicyArn)
	versions, ok := a.policies[arn]
	if !ok {
		return nil, noSuchEntity("Policy %s was not found.", arn)
	}
	out := &iam.ListPolicyVersionsOutput{}
	for i, v := range versions {
		out.Versions = append(out.Versions, iamtypes.PolicyVersion{VersionId: aws.String(v), IsDefaultVersion: i == 0})
	}
	return out, nil
}

func (a *account) DeletePolicyVersion(ctx context.Context, in *iam.DeletePolicyVersionInput, _ ...func(*iam.Options)) (*iam.DeletePolicyVersionOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	arn, id := aws.ToString(in.PolicyArn), aws.ToString(in.VersionId)
	kept := a.policies[arn][:0]
	for _, v := range a.policies[arn] {
		if v != id {
			kept = append(kept, v)
		}
	}
	a.policies[arn] = kept
	return &iam.DeletePolicyVersionOutput{}, nil
}

func (a *account) DeletePolicy(ctx context.Context, in *iam.DeletePolicyInput, _ ...func(*iam.Options)) (*iam.DeletePolicyOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	arn := aws.ToString(in.PolicyArn)
	versions, ok := a.policies[arn]
	if !ok {
		return nil, noSuchEntity("Policy %s was not found.", arn)
	}
	if len(versions) > 1 {
		return nil, conflict("Cannot delete a policy with non-default versions.")
	}
	for _, attached := range a.attached {
		if attached[arn] {
			return nil, conflict("Cannot delete a policy attached to entities.")
		}
	}
	delete(a.policies, arn)
	return &iam.DeletePolicyOutput{}, nil
}

func (a *account) DeleteRole(ctx context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := aws.ToString(in.RoleName)
	if !a.roles[name] {
		return nil, noSuchEntity("The role with name %s cannot be found.", name)
	}
	if len(a.attached[name]) > 0 {
		return nil, conflict("Cannot delete entity, must detach all policies first.")
	}
	for _, role := range a.profiles {
		if role == name {
			return nil, conflict("Cannot delete entity, must remove roles from instance profile first.")
		}
	}
	delete(a.roles, name)
	return &iam.DeleteRoleOutput{}, nil
}

// addPolicyVersion simulates an out-of-band policy edit.
func (a *account) addPolicyVersion(arn, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.policies[arn] = append(a.policies[arn], id)
}

type stubSTS struct{}

func (stubSTS) GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(e2eAccount),
		Arn:     aws.String("arn:aws:sts::" + e2eAccount + ":assumed-role/EC2SnapshotRole/i-0e2e"),
		UserId:  aws.String("AROAE2E:i-0e2e"),
	}, nil
}

// ---------------------------------------------------------------------------
// In-memory EC2 and S3
// ---------------------------------------------------------------------------

// cloud is a tiny EC2 region set: one instance with one root volume, plus
// every snapshot and image created during the run.
type cloud struct {
	mu        sync.Mutex
	region    string
	instance  string
	volume    string
	regions   []string
	snapshots map[string]string // snapshot ID -> region
	images    map[string]string // image ID -> region
	objects   map[string][]byte // bucket/key -> body
	buckets   map[string]bool
	seq       int
}

func newCloud(region string) *cloud {
	return &cloud{
		region:    region,
		instance:  "i-0e2e000000000001",
		volume:    "vol-0e2e000000000001",
		regions:   []string{region, "eu-west-1", "ap-northeast-1"},
		snapshots: map[string]string{},
		images:    map[string]string{},
		objects:   map[string][]byte{},
		buckets:   map[string]bool{},
	}
}

func (c *cloud) next(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s-0e2e%012d", prefix, c.seq)
}

func (c *cloud) GetMetadata(ctx context.Context, in *imds.GetMetadataInput, _ ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	if in.Path != "instance-id" {
		return nil, fmt.Errorf("unexpected metadata path %q", in.Path)
	}
	return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(c.instance))}, nil
}

func (c *cloud) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{
		Instances: []ec2types.Instance{{
			InstanceId:     aws.String(c.instance),
			RootDeviceName: aws.String("/dev/xvda"),
			BlockDeviceMappings: []ec2types.InstanceBlockDeviceMapping{
				{DeviceName: aws.String("/dev/xvdf"), Ebs: &ec2types.EbsInstanceBlockDevice{VolumeId: aws.String("vol-data")}},
				{DeviceName: aws.String("/dev/xvda"), Ebs: &ec2types.EbsInstanceBlockDevice{VolumeId: aws.String(c.volume)}},
			},
		}},
	}}}, nil
}

func (c *cloud) DescribeRegions(ctx context.Context, in *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	out := &ec2.DescribeRegionsOutput{}
	for _, r := range c.regions {
		out.Regions = append(out.Regions, ec2types.Region{RegionName: aws.String(r)})
	}
	return out, nil
}

func (c *cloud) CreateSnapshot(ctx context.Context, in *ec2.CreateSnapshotInput, _ ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aws.ToString(in.VolumeId) != c.volume {
		return nil, fmt.Errorf("InvalidVolume.NotFound: %s", aws.ToString(in.VolumeId))
	}
	id := c.next("snap")
	c.snapshots[id] = c.region
	return &ec2.CreateSnapshotOutput{SnapshotId: aws.String(id), VolumeId: in.VolumeId}, nil
}

// regional is the cloud seen from one region.
type regional struct {
	*cloud
	region string
}

func (r regional) CopySnapshot(ctx context.Context, in *ec2.CopySnapshotInput, _ ...func(*ec2.Options)) (*ec2.CopySnapshotOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshots[aws.ToString(in.SourceSnapshotId)] != aws.ToString(in.SourceRegion) {
		return nil, fmt.Errorf("InvalidSnapshot.NotFound: %s", aws.ToString(in.SourceSnapshotId))
	}
	id := r.next("snap")
	r.snapshots[id] = r.region
	return &ec2.CopySnapshotOutput{SnapshotId: aws.String(id)}, nil
}

func (r regional) RegisterImage(ctx context.Context, in *ec2.RegisterImageInput, _ ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := aws.ToString(in.BlockDeviceMappings[0].Ebs.SnapshotId)
	if r.snapshots[snap] != r.region {
		return nil, fmt.Errorf("InvalidSnapshot.NotFound: %s in %s", snap, r.region)
	}
	id := r.next("ami")
	r.images[id] = r.region
	return &ec2.RegisterImageOutput{ImageId: aws.String(id)}, nil
}

// Wait completes immediately for any snapshot this region knows about.
func (r regional) Wait(ctx context.Context, in *ec2.DescribeSnapshotsInput, maxWait time.Duration, _ ...func(*ec2.SnapshotCompletedWaiterOptions)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range in.SnapshotIds {
		if r.snapshots[id] != r.region {
			return fmt.Errorf("snapshot %s not found in %s", id, r.region)
		}
	}
	return nil
}

func (c *cloud) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.buckets[aws.ToString(in.Bucket)] {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (c *cloud) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func (c *cloud) PutPublicAccessBlock(ctx context.Context, in *s3.PutPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (c *cloud) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.buckets[aws.ToString(in.Bucket)] {
		return nil, &s3types.NoSuchBucket{}
	}
	c.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

// clients wires the cloud into the benchmark's dependency set.
func (c *cloud) clients() benchmark.Clients {
	home := regional{cloud: c, region: c.region}
	return benchmark.Clients{
		IMDS:              c,
		DescribeInstances: c,
		DescribeRegions:   c,
		CreateSnapshot:    c,
		Waiter:            home,
		Regional: func(region string) (snapaws.RegionalEC2, snapaws.WaitSnapshotCompletedAPI) {
			r := regional{cloud: c, region: region}
			return r, r
		},
		S3: c,
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// runRoot executes the real root command. Only commands that make no AWS
// calls are run this way.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root := cmd.NewRootCommand()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertContains(t *testing.T, label, got string, wants []string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("%s: output missing %q\n--- output ---\n%s", label, w, got)
		}
	}
}
