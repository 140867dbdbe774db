package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Caller holds the fields of an STS caller identity lookup.
type Caller struct {
	AccountID string
	ARN       string
	UserID    string
}

// STSClient defines the subset of the STS API used for identity resolution.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Resolver resolves the current AWS caller identity.
type Resolver struct {
	client STSClient
}

// NewResolver creates a Resolver with the given STS client.
func NewResolver(client STSClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve calls STS GetCallerIdentity. A response without an account ID is
// an error: every caller of Resolve needs it.
func (r *Resolver) Resolve(ctx context.Context) (*Caller, error) {
	out, err := r.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("sts get-caller-identity: %w", err)
	}
	if out.Account == nil || *out.Account == "" {
		return nil, fmt.Errorf("sts get-caller-identity returned no account ID")
	}

	return &Caller{
		AccountID: aws.ToString(out.Account),
		ARN:       aws.ToString(out.Arn),
		UserID:    aws.ToString(out.UserId),
	}, nil
}
