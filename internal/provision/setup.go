package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
	"github.com/nicholasgasior/snapprof/internal/identity"
)

// Provisioner creates the snapshot role, policy, and instance profile.
// All AWS dependencies are injected via narrow interfaces for testability.
type Provisioner struct {
	createRole       snapaws.CreateRoleAPI
	createPolicy     snapaws.CreatePolicyAPI
	attachPolicy     snapaws.AttachRolePolicyAPI
	createProfile    snapaws.CreateInstanceProfileAPI
	addRoleToProfile snapaws.AddRoleToInstanceProfileAPI
	resolver         *identity.Resolver

	// Dir is the directory the policy documents are read from. Empty means
	// the process working directory.
	Dir string

	// OnStep, when set, is called after each step completes.
	OnStep func(StepResult)

	readFile func(string) ([]byte, error)
}

// NewProvisioner creates a Provisioner with all required AWS interfaces.
func NewProvisioner(
	createRole snapaws.CreateRoleAPI,
	createPolicy snapaws.CreatePolicyAPI,
	attachPolicy snapaws.AttachRolePolicyAPI,
	createProfile snapaws.CreateInstanceProfileAPI,
	addRoleToProfile snapaws.AddRoleToInstanceProfileAPI,
	sts identity.STSClient,
) *Provisioner {
	return &Provisioner{
		createRole:       createRole,
		createPolicy:     createPolicy,
		attachPolicy:     attachPolicy,
		createProfile:    createProfile,
		addRoleToProfile: addRoleToProfile,
		resolver:         identity.NewResolver(sts),
		readFile:         os.ReadFile,
	}
}

// Run executes every setup step in order and returns the full report. It
// never returns early; callers inspect Report.Failed.
func (p *Provisioner) Run(ctx context.Context) *Report {
	r := &Report{}

	// Step 1: role from the trust policy document.
	out, err := p.runCreateRole(ctx)
	r.record(p.OnStep, StepCreateRole, out, err)

	// Step 2: managed policy from the permission document.
	out, err = p.runCreatePolicy(ctx)
	r.record(p.OnStep, StepCreatePolicy, out, err)

	// Step 3: account lookup. On failure the account stays empty and the
	// attach below fails against IAM with a malformed ARN.
	out = nil
	caller, err := p.resolver.Resolve(ctx)
	if err == nil {
		r.AccountID = caller.AccountID
		out = map[string]interface{}{"Account": caller.AccountID, "Arn": caller.ARN, "UserId": caller.UserID}
	}
	r.record(p.OnStep, StepGetCallerIdentity, out, err)
	r.PolicyARN = identity.PolicyARN(r.AccountID, PolicyName)

	// Step 4: attach.
	_, err = p.attachPolicy.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(RoleName),
		PolicyArn: aws.String(r.PolicyARN),
	})
	if err != nil {
		err = fmt.Errorf("attach policy %s to role %s: %w", r.PolicyARN, RoleName, err)
	}
	r.record(p.OnStep, StepAttachRolePolicy, nil, err)

	// Step 5: instance profile.
	profOut, err := p.createProfile.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(InstanceProfileName),
	})
	out = nil
	if err != nil {
		err = fmt.Errorf("create instance profile %s: %w", InstanceProfileName, err)
	} else {
		out = map[string]interface{}{"InstanceProfile": profOut.InstanceProfile}
	}
	r.record(p.OnStep, StepCreateInstanceProfile, out, err)

	// Step 6: role into profile.
	_, err = p.addRoleToProfile.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(InstanceProfileName),
		RoleName:            aws.String(RoleName),
	})
	if err != nil {
		err = fmt.Errorf("add role %s to instance profile %s: %w", RoleName, InstanceProfileName, err)
	}
	r.record(p.OnStep, StepAddRoleToInstanceProfile, nil, err)

	return r
}

func (p *Provisioner) runCreateRole(ctx context.Context) (map[string]interface{}, error) {
	doc, err := p.document(TrustPolicyFile)
	if err != nil {
		return nil, err
	}
	out, err := p.createRole.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(RoleName),
		AssumeRolePolicyDocument: aws.String(doc),
	})
	if err != nil {
		return nil, fmt.Errorf("create role %s: %w", RoleName, err)
	}
	return map[string]interface{}{"Role": out.Role}, nil
}

func (p *Provisioner) runCreatePolicy(ctx context.Context) (map[string]interface{}, error) {
	doc, err := p.document(PolicyDocumentFile)
	if err != nil {
		return nil, err
	}
	out, err := p.createPolicy.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(PolicyName),
		PolicyDocument: aws.String(doc),
	})
	if err != nil {
		return nil, fmt.Errorf("create policy %s: %w", PolicyName, err)
	}
	return map[string]interface{}{"Policy": out.Policy}, nil
}

// document reads a policy document verbatim. Contents are opaque here;
// IAM validates them.
func (p *Provisioner) document(name string) (string, error) {
	path := name
	if p.Dir != "" {
		path = filepath.Join(p.Dir, name)
	}
	data, err := p.readFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy document: %w", err)
	}
	return string(data), nil
}
