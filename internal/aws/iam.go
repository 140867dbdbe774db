// Package aws provides thin wrappers around AWS SDK clients used by snapprof.
// This file defines narrow interfaces for the IAM operations performed by
// setup and teardown. Each interface wraps exactly one AWS SDK method,
// enabling mock injection in tests.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// ---------------------------------------------------------------------------
// Creation (setup)
// ---------------------------------------------------------------------------

// CreateRoleAPI defines the subset of the IAM API used to create a role.
type CreateRoleAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
}

// CreatePolicyAPI defines the subset of the IAM API used to create a
// customer-managed policy.
type CreatePolicyAPI interface {
	CreatePolicy(ctx context.Context, params *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
}

// AttachRolePolicyAPI defines the subset of the IAM API used to attach a
// managed policy to a role.
type AttachRolePolicyAPI interface {
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

// CreateInstanceProfileAPI defines the subset of the IAM API used to create
// an instance profile.
type CreateInstanceProfileAPI interface {
	CreateInstanceProfile(ctx context.Context, params *iam.CreateInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error)
}

// AddRoleToInstanceProfileAPI defines the subset of the IAM API used to
// place a role in an instance profile.
type AddRoleToInstanceProfileAPI interface {
	AddRoleToInstanceProfile(ctx context.Context, params *iam.AddRoleToInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error)
}

// ---------------------------------------------------------------------------
// Removal (teardown)
// ---------------------------------------------------------------------------

// RemoveRoleFromInstanceProfileAPI wraps iam.RemoveRoleFromInstanceProfile.
type RemoveRoleFromInstanceProfileAPI interface {
	RemoveRoleFromInstanceProfile(ctx context.Context, params *iam.RemoveRoleFromInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.RemoveRoleFromInstanceProfileOutput, error)
}

// DeleteInstanceProfileAPI wraps iam.DeleteInstanceProfile.
type DeleteInstanceProfileAPI interface {
	DeleteInstanceProfile(ctx context.Context, params *iam.DeleteInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.DeleteInstanceProfileOutput, error)
}

// DetachRolePolicyAPI wraps iam.DetachRolePolicy.
type DetachRolePolicyAPI interface {
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
}

// ListPolicyVersionsAPI wraps iam.ListPolicyVersions.
type ListPolicyVersionsAPI interface {
	ListPolicyVersions(ctx context.Context, params *iam.ListPolicyVersionsInput, optFns ...func(*iam.Options)) (*iam.ListPolicyVersionsOutput, error)
}

// DeletePolicyVersionAPI wraps iam.DeletePolicyVersion.
type DeletePolicyVersionAPI interface {
	DeletePolicyVersion(ctx context.Context, params *iam.DeletePolicyVersionInput, optFns ...func(*iam.Options)) (*iam.DeletePolicyVersionOutput, error)
}

// DeletePolicyAPI wraps iam.DeletePolicy.
type DeletePolicyAPI interface {
	DeletePolicy(ctx context.Context, params *iam.DeletePolicyInput, optFns ...func(*iam.Options)) (*iam.DeletePolicyOutput, error)
}

// DeleteRoleAPI wraps iam.DeleteRole.
type DeleteRoleAPI interface {
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

// ---------------------------------------------------------------------------
// Compile-time interface satisfaction checks
// ---------------------------------------------------------------------------

var (
	_ CreateRoleAPI                    = (*iam.Client)(nil)
	_ CreatePolicyAPI                  = (*iam.Client)(nil)
	_ AttachRolePolicyAPI              = (*iam.Client)(nil)
	_ CreateInstanceProfileAPI         = (*iam.Client)(nil)
	_ AddRoleToInstanceProfileAPI      = (*iam.Client)(nil)
	_ RemoveRoleFromInstanceProfileAPI = (*iam.Client)(nil)
	_ DeleteInstanceProfileAPI         = (*iam.Client)(nil)
	_ DetachRolePolicyAPI              = (*iam.Client)(nil)
	_ ListPolicyVersionsAPI            = (*iam.Client)(nil)
	_ DeletePolicyVersionAPI           = (*iam.Client)(nil)
	_ DeletePolicyAPI                  = (*iam.Client)(nil)
	_ DeleteRoleAPI                    = (*iam.Client)(nil)
)
