package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
	"github.com/nicholasgasior/snapprof/internal/identity"
)

// Deprovisioner removes what Provisioner created, in reverse dependency
// order. Like setup it runs every step regardless of earlier failures, so a
// partially provisioned account is cleaned up as far as possible.
type Deprovisioner struct {
	removeRole    snapaws.RemoveRoleFromInstanceProfileAPI
	deleteProfile snapaws.DeleteInstanceProfileAPI
	detachPolicy  snapaws.DetachRolePolicyAPI
	listVersions  snapaws.ListPolicyVersionsAPI
	deleteVersion snapaws.DeletePolicyVersionAPI
	deletePolicy  snapaws.DeletePolicyAPI
	deleteRole    snapaws.DeleteRoleAPI
	resolver      *identity.Resolver

	// OnStep, when set, is called after each step completes.
	OnStep func(StepResult)
}

// TeardownAPI groups every IAM call teardown makes. *iam.Client satisfies it.
type TeardownAPI interface {
	snapaws.RemoveRoleFromInstanceProfileAPI
	snapaws.DeleteInstanceProfileAPI
	snapaws.DetachRolePolicyAPI
	snapaws.ListPolicyVersionsAPI
	snapaws.DeletePolicyVersionAPI
	snapaws.DeletePolicyAPI
	snapaws.DeleteRoleAPI
}

var _ TeardownAPI = (*iam.Client)(nil)

// NewDeprovisioner creates a Deprovisioner from a single IAM client.
func NewDeprovisioner(client TeardownAPI, sts identity.STSClient) *Deprovisioner {
	return &Deprovisioner{
		removeRole:    client,
		deleteProfile: client,
		detachPolicy:  client,
		listVersions:  client,
		deleteVersion: client,
		deletePolicy:  client,
		deleteRole:    client,
		resolver:      identity.NewResolver(sts),
	}
}

// Run executes every teardown step in order and returns the full report.
func (d *Deprovisioner) Run(ctx context.Context) *Report {
	r := &Report{}

	_, err := d.removeRole.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(InstanceProfileName),
		RoleName:            aws.String(RoleName),
	})
	r.record(d.OnStep, StepRemoveRoleFromInstanceProfile, nil, wrap(err, "remove role %s from instance profile %s", RoleName, InstanceProfileName))

	_, err = d.deleteProfile.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(InstanceProfileName),
	})
	r.record(d.OnStep, StepDeleteInstanceProfile, nil, wrap(err, "delete instance profile %s", InstanceProfileName))

	caller, err := d.resolver.Resolve(ctx)
	var out map[string]interface{}
	if err == nil {
		r.AccountID = caller.AccountID
		out = map[string]interface{}{"Account": caller.AccountID, "Arn": caller.ARN, "UserId": caller.UserID}
	}
	r.record(d.OnStep, StepGetCallerIdentity, out, err)
	r.PolicyARN = identity.PolicyARN(r.AccountID, PolicyName)

	_, err = d.detachPolicy.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(RoleName),
		PolicyArn: aws.String(r.PolicyARN),
	})
	r.record(d.OnStep, StepDetachRolePolicy, nil, wrap(err, "detach policy %s from role %s", r.PolicyARN, RoleName))

	deleted, err := d.deleteNonDefaultVersions(ctx, r.PolicyARN)
	out = nil
	if err == nil {
		out = map[string]interface{}{"DeletedVersions": deleted}
	}
	r.record(d.OnStep, StepDeletePolicyVersions, out, err)

	_, err = d.deletePolicy.DeletePolicy(ctx, &iam.DeletePolicyInput{
		PolicyArn: aws.String(r.PolicyARN),
	})
	r.record(d.OnStep, StepDeletePolicy, nil, wrap(err, "delete policy %s", r.PolicyARN))

	_, err = d.deleteRole.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(RoleName),
	})
	r.record(d.OnStep, StepDeleteRole, nil, wrap(err, "delete role %s", RoleName))

	return r
}

// deleteNonDefaultVersions removes every policy version except the default
// one; IAM refuses DeletePolicy while other versions exist. Per-version
// failures are joined so one bad version does not hide the rest.
func (d *Deprovisioner) deleteNonDefaultVersions(ctx context.Context, policyARN string) ([]string, error) {
	var deleted []string
	var errs []error
	var marker *string

	for {
		out, err := d.listVersions.ListPolicyVersions(ctx, &iam.ListPolicyVersionsInput{
			PolicyArn: aws.String(policyARN),
			Marker:    marker,
		})
		if err != nil {
			return deleted, fmt.Errorf("list policy versions for %s: %w", policyARN, err)
		}

		for _, v := range out.Versions {
			if v.IsDefaultVersion {
				continue
			}
			id := aws.ToString(v.VersionId)
			if _, err := d.deleteVersion.DeletePolicyVersion(ctx, &iam.DeletePolicyVersionInput{
				PolicyArn: aws.String(policyARN),
				VersionId: aws.String(id),
			}); err != nil {
				errs = append(errs, fmt.Errorf("delete policy version %s: %w", id, err))
				continue
			}
			deleted = append(deleted, id)
		}

		if !out.IsTruncated || aws.ToString(out.Marker) == "" {
			break
		}
		marker = out.Marker
	}

	return deleted, errors.Join(errs...)
}

func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
